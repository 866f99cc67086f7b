package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/pos-register/internal/core/domain"
)

func TestMemoryStore_DecrementStock_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	seed(t, store, "P1", "1.00", 10)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.DecrementStock(context.Background(), "P1", 1); ok {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), successCount.Load())
	p, err := store.FindProduct(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}

func TestMemoryStore_IncrementUnknown(t *testing.T) {
	store := NewMemoryStore()
	err := store.IncrementStock(context.Background(), "ghost", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestMemoryStore_Sales(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		header, lines := saleOf(domain.LineItem{
			ProductID: "P1", Name: "Product P1", UnitPrice: decimal.RequireFromString("1.00"), Quantity: i,
		})
		_, err := store.PersistSale(ctx, header, lines)
		require.NoError(t, err)
	}

	sales, err := store.ListSales(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, 3, sales[0].Lines[0].Quantity)

	got, err := store.GetSale(ctx, sales[1].ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Lines[0].Quantity)

	header, lines := saleOf(domain.LineItem{
		ProductID: "P1", Name: "Product P1", UnitPrice: decimal.RequireFromString("1.00"), Quantity: 1,
	})
	header.Total = decimal.RequireFromString("9")
	_, err = store.PersistSale(ctx, header, lines)
	assert.ErrorIs(t, err, ErrTotalMismatch)
}

func TestMemoryStore_PersistSale_SameIDRecordedOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	header, lines := saleOf(domain.LineItem{
		ProductID: "P1", Name: "Product P1", UnitPrice: decimal.RequireFromString("1.00"), Quantity: 1,
	})
	for i := 0; i < 2; i++ {
		id, err := store.PersistSale(ctx, header, lines)
		require.NoError(t, err)
		assert.Equal(t, header.ID, id)
	}

	sales, err := store.ListSales(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, sales, 1)
}
