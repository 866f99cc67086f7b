package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rl1809/pos-register/internal/config"
)

func newSeedCommand(opts *rootOptions) *cobra.Command {
	var productsPath string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a product catalog into the inventory store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			products, err := config.LoadProducts(productsPath)
			if err != nil {
				return err
			}

			b, err := openBackend(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.SaveProducts(ctx, products); err != nil {
				return err
			}

			opts.logger.Info("seeded products",
				zap.String("path", productsPath),
				zap.Int("products", len(products)),
				zap.String("backend", opts.cfg.Inventory.Backend))
			return nil
		},
	}

	cmd.Flags().StringVarP(&productsPath, "file", "f", "products.yaml", "product catalog YAML")
	return cmd
}
