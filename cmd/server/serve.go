package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/pos-register/internal/adapter/handler"
	"github.com/rl1809/pos-register/internal/config"
	"github.com/rl1809/pos-register/internal/core/service"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var productsPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the register HTTP and gRPC servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts.cfg, opts.logger, productsPath)
		},
	}

	cmd.Flags().StringVar(&productsPath, "products", "", "product catalog YAML to load before serving")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config, logger *zap.Logger, productsPath string) error {
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("failed to close connections", zap.Error(err))
			return
		}
		logger.Info("connections closed")
	}()

	if productsPath != "" {
		products, err := config.LoadProducts(productsPath)
		if err != nil {
			return err
		}
		if err := b.SaveProducts(ctx, products); err != nil {
			return err
		}
		logger.Info("loaded product catalog", zap.String("path", productsPath), zap.Int("products", len(products)))
	}

	terminals := service.NewTerminals(b.inventory, b.recorder, logger,
		service.WithOperationTimeout(cfg.OperationTimeout))

	// gRPC
	grpcServer := grpc.NewServer()
	handler.RegisterRegisterServer(grpcServer, handler.NewGRPCHandler(terminals, logger))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(handler.RegisterServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	// HTTP
	mux := http.NewServeMux()
	handler.NewHTTPHandler(terminals, logger).Register(mux)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		logger.Error("server error", zap.Error(serveErr))
	}

	logger.Info("shutting down...")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Carts left open return their reservations to stock.
	if err := terminals.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to release open carts", zap.Error(err))
	}
	logger.Info("terminals closed")

	return serveErr
}
