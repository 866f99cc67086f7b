package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/pos-register/internal/adapter/storage"
	"github.com/rl1809/pos-register/internal/core/domain"
	"github.com/rl1809/pos-register/internal/core/service"
	"github.com/rl1809/pos-register/internal/port"
)

const (
	redisAddr      = "localhost:6379"
	productID      = "stress-item"
	initialStock   = 20
	totalTerminals = 50
)

func main() {
	ctx := context.Background()

	logger, err := zap.NewDevelopment(zap.IncreaseLevel(zap.WarnLevel))
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	dir, err := os.MkdirTemp("", "pos-stress-*")
	if err != nil {
		log.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	// Sales always land in SQLite
	db, err := storage.OpenSQL(ctx, storage.DialectSQLite,
		"file:"+filepath.Join(dir, "stress.db")+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		log.Fatalf("failed to open sqlite: %v", err)
	}
	defer db.Close()

	sqlStore := storage.NewSQLStore(db, storage.DialectSQLite)
	if err := sqlStore.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	item := domain.Product{
		ID:        productID,
		Name:      "Stress Item",
		UnitPrice: decimal.RequireFromString("9.99"),
		Stock:     initialStock,
	}
	if err := sqlStore.SaveProduct(ctx, item); err != nil {
		log.Fatalf("failed to seed product: %v", err)
	}

	// Use Redis for stock when it is reachable
	var inventory port.InventoryStore = sqlStore
	backend := "sqlite"
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err == nil {
		redisAdapter := storage.NewRedisAdapter(rdb)
		if err := redisAdapter.SaveProduct(ctx, item); err != nil {
			log.Fatalf("failed to set stock: %v", err)
		}
		inventory = redisAdapter
		backend = "redis"
	}

	terminals := service.NewTerminals(inventory, sqlStore, logger)
	defer terminals.Shutdown(ctx)

	var (
		addOK       atomic.Int32
		outOfStock  atomic.Int32
		otherErrors atomic.Int32
		checkedOut  atomic.Int32
	)

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalTerminals; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, register := terminals.Open("")
			if _, err := register.AddItem(ctx, productID, 1); err != nil {
				if errors.Is(err, domain.ErrInsufficientStock) {
					outOfStock.Add(1)
				} else {
					otherErrors.Add(1)
				}
				return
			}
			addOK.Add(1)

			if _, err := register.Checkout(ctx); err != nil {
				otherErrors.Add(1)
				return
			}
			checkedOut.Add(1)
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	sales, err := sqlStore.ListSales(ctx, totalTerminals)
	if err != nil {
		log.Fatalf("failed to list sales: %v", err)
	}
	final, err := inventory.FindProduct(ctx, productID)
	if err != nil || final == nil {
		log.Fatalf("failed to read final stock: %v", err)
	}

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Stock Backend:    %s\n", backend)
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Terminals:        %d\n", totalTerminals)
	fmt.Printf("Items Reserved:   %d\n", addOK.Load())
	fmt.Printf("Out Of Stock:     %d\n", outOfStock.Load())
	fmt.Printf("Other Errors:     %d\n", otherErrors.Load())
	fmt.Printf("Sales Committed:  %d\n", checkedOut.Load())
	fmt.Printf("Sales Recorded:   %d\n", len(sales))
	fmt.Printf("Final Stock:      %d\n", final.Stock)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if addOK.Load() == initialStock && outOfStock.Load() == totalTerminals-initialStock {
		fmt.Printf("PASS: exactly %d items reserved, %d refused\n", initialStock, totalTerminals-initialStock)
	} else {
		fmt.Printf("FAIL: expected %d reserved/%d refused, got %d/%d\n",
			initialStock, totalTerminals-initialStock, addOK.Load(), outOfStock.Load())
	}

	if final.Stock == 0 && len(sales) == initialStock {
		fmt.Println("PASS: stock depleted to 0 and every sale recorded")
	} else {
		fmt.Printf("FAIL: expected stock 0 and %d sales, got %d and %d\n", initialStock, final.Stock, len(sales))
	}
}
