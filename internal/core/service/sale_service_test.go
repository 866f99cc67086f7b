package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/rl1809/pos-register/internal/core/domain"
)

func newTestService(t *testing.T, inv *mockInventory, rec *mockRecorder, opts ...Option) *SaleService {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	return NewSaleService(inv, rec, opts...)
}

func TestAddItem_Success(t *testing.T) {
	inv := newMockInventory(product("P1", "2.00", 5))
	svc := newTestService(t, inv, newMockRecorder())

	snap, err := svc.AddItem(context.Background(), "P1", 3)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if snap.DisplayTotal() != "6.00" {
		t.Errorf("expected total 6.00, got %s", snap.DisplayTotal())
	}
	if len(snap.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(snap.Lines))
	}
	line := snap.Lines[0]
	if line.ProductID != "P1" || line.Name != "Product P1" || line.Quantity != 3 {
		t.Errorf("unexpected line: %+v", line)
	}
	if inv.stock("P1") != 2 {
		t.Errorf("expected stock 2, got %d", inv.stock("P1"))
	}
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	inv := newMockInventory(product("P1", "2.00", 5))
	svc := newTestService(t, inv, newMockRecorder())

	for _, qty := range []int{0, -1} {
		_, err := svc.AddItem(context.Background(), "P1", qty)
		if !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Errorf("quantity %d: expected ErrInvalidQuantity, got: %v", qty, err)
		}
	}

	if inv.mutations() != 0 {
		t.Errorf("expected no stock mutations, got %d", inv.mutations())
	}
}

func TestAddItem_ProductNotFound(t *testing.T) {
	inv := newMockInventory()
	svc := newTestService(t, inv, newMockRecorder())

	_, err := svc.AddItem(context.Background(), "missing", 1)
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got: %v", err)
	}

	var ce *domain.CartError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *domain.CartError, got %T", err)
	}
	if ce.Op != "add item" || ce.ProductID != "missing" || ce.Quantity != 1 {
		t.Errorf("unexpected error details: %+v", ce)
	}
}

func TestAddItem_InsufficientStock(t *testing.T) {
	inv := newMockInventory(product("P1", "2.00", 2))
	svc := newTestService(t, inv, newMockRecorder())

	snap, err := svc.AddItem(context.Background(), "P1", 3)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}

	var ce *domain.CartError
	if errors.As(err, &ce) && (ce.ProductID != "P1" || ce.Quantity != 3) {
		t.Errorf("expected offending product and quantity, got %+v", ce)
	}
	if len(snap.Lines) != 0 {
		t.Errorf("expected empty cart, got %d lines", len(snap.Lines))
	}
	if inv.stock("P1") != 2 {
		t.Errorf("expected stock unchanged at 2, got %d", inv.stock("P1"))
	}
}

func TestAddItem_NeverOversells(t *testing.T) {
	const stock = 7
	inv := newMockInventory(product("P1", "1.00", stock))
	svc := newTestService(t, inv, newMockRecorder())

	reserved := 0
	for i := 0; i < stock; i++ {
		if _, err := svc.AddItem(context.Background(), "P1", 1); err != nil {
			t.Fatalf("unit %d: unexpected error: %v", i+1, err)
		}
		reserved++
	}

	_, err := svc.AddItem(context.Background(), "P1", 1)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Errorf("expected unit %d to fail with ErrInsufficientStock, got: %v", stock+1, err)
	}

	cart := svc.CurrentCart()
	if got := len(cart.Lines); got != reserved {
		t.Errorf("expected %d lines, got %d", reserved, got)
	}
	if inv.stock("P1") != 0 {
		t.Errorf("expected stock 0, got %d", inv.stock("P1"))
	}
}

func TestAddItem_StoreFailure(t *testing.T) {
	inv := newMockInventory(product("P1", "2.00", 5))
	inv.decErr = errors.New("connection refused")
	svc := newTestService(t, inv, newMockRecorder())

	_, err := svc.AddItem(context.Background(), "P1", 1)
	if !errors.Is(err, domain.ErrPersistence) {
		t.Errorf("expected ErrPersistence, got: %v", err)
	}
	if len(svc.CurrentCart().Lines) != 0 {
		t.Error("expected no line appended on store failure")
	}
}

func TestAddItem_Timeout(t *testing.T) {
	inv := newMockInventory(product("P1", "2.00", 5))
	inv.block = true
	svc := newTestService(t, inv, newMockRecorder(), WithOperationTimeout(20*time.Millisecond))

	_, err := svc.AddItem(context.Background(), "P1", 1)
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got: %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected cause to be context.DeadlineExceeded, got: %v", err)
	}
}

func TestRemoveItem_RestoresStock(t *testing.T) {
	inv := newMockInventory(product("P1", "2.00", 5), product("P2", "10.00", 3))
	svc := newTestService(t, inv, newMockRecorder())
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "P1", 3); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddItem(ctx, "P2", 1); err != nil {
		t.Fatal(err)
	}

	snap, err := svc.RemoveItem(ctx, 0)
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	if inv.stock("P1") != 5 {
		t.Errorf("expected stock restored to 5, got %d", inv.stock("P1"))
	}
	if len(snap.Lines) != 1 || snap.Lines[0].ProductID != "P2" {
		t.Errorf("expected only P2 left, got %+v", snap.Lines)
	}
	if snap.DisplayTotal() != "10.00" {
		t.Errorf("expected total 10.00, got %s", snap.DisplayTotal())
	}
}

func TestRemoveItem_SecondRemoveDoesNotRestoreTwice(t *testing.T) {
	inv := newMockInventory(product("P1", "2.00", 5))
	svc := newTestService(t, inv, newMockRecorder())
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "P1", 3); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RemoveItem(ctx, 0); err != nil {
		t.Fatal(err)
	}
	before := inv.mutations()

	_, err := svc.RemoveItem(ctx, 0)
	if !errors.Is(err, domain.ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got: %v", err)
	}

	var ce *domain.CartError
	if errors.As(err, &ce) && ce.Index != 0 {
		t.Errorf("expected index 0 in error, got %d", ce.Index)
	}
	if inv.mutations() != before {
		t.Error("expected no stock mutation on second remove")
	}
	if inv.stock("P1") != 5 {
		t.Errorf("expected stock 5, got %d", inv.stock("P1"))
	}
}

func TestRemoveItem_RestoreFailureKeepsLineRemoved(t *testing.T) {
	inv := newMockInventory(product("P1", "2.00", 5))
	svc := newTestService(t, inv, newMockRecorder())
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "P1", 2); err != nil {
		t.Fatal(err)
	}
	inv.incErr = errors.New("store unreachable")

	snap, err := svc.RemoveItem(ctx, 0)
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got: %v", err)
	}
	if len(snap.Lines) != 0 {
		t.Errorf("expected line to stay removed, got %d lines", len(snap.Lines))
	}

	inv.incErr = nil
	if _, err := svc.RemoveItem(ctx, 0); !errors.Is(err, domain.ErrLineNotFound) {
		t.Errorf("expected ErrLineNotFound on retry, got: %v", err)
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	rec := newMockRecorder()
	svc := newTestService(t, newMockInventory(), rec)

	_, err := svc.Checkout(context.Background())
	if !errors.Is(err, domain.ErrEmptyCart) {
		t.Errorf("expected ErrEmptyCart, got: %v", err)
	}
	if rec.count() != 0 {
		t.Error("expected no sale recorded")
	}
}

func TestCheckout_Success(t *testing.T) {
	inv := newMockInventory(product("P2", "10.00", 2))
	rec := newMockRecorder()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, inv, rec, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "P2", 2); err != nil {
		t.Fatal(err)
	}
	mutations := inv.mutations()

	sale, err := svc.Checkout(ctx)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if sale.ID == "" {
		t.Error("expected sale ID")
	}
	if sale.Total.StringFixed(2) != "20.00" {
		t.Errorf("expected total 20.00, got %s", sale.Total.StringFixed(2))
	}
	if !sale.Total.Equal(sale.LinesTotal()) {
		t.Errorf("sale total %s != lines total %s", sale.Total, sale.LinesTotal())
	}
	if !sale.CreatedAt.Equal(now) {
		t.Errorf("expected timestamp %v, got %v", now, sale.CreatedAt)
	}
	if rec.count() != 1 {
		t.Errorf("expected 1 recorded sale, got %d", rec.count())
	}
	if inv.mutations() != mutations {
		t.Error("checkout must not touch inventory")
	}
	if inv.stock("P2") != 0 {
		t.Errorf("expected stock 0, got %d", inv.stock("P2"))
	}

	cart := svc.CurrentCart()
	if len(cart.Lines) != 0 || !cart.Total.IsZero() {
		t.Error("expected cart cleared after checkout")
	}
	if cart.State != domain.SaleStateCommitted {
		t.Errorf("expected committed state, got %s", cart.State)
	}
}

func TestCheckout_PersistenceFailureKeepsCart(t *testing.T) {
	inv := newMockInventory(product("P1", "2.00", 5))
	rec := newMockRecorder()
	rec.err = errors.New("transaction aborted")
	svc := newTestService(t, inv, rec)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "P1", 2); err != nil {
		t.Fatal(err)
	}
	before := svc.CurrentCart()

	_, err := svc.Checkout(ctx)
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got: %v", err)
	}

	if rec.count() != 0 {
		t.Error("expected no sale recorded")
	}
	after := svc.CurrentCart()
	if len(after.Lines) != len(before.Lines) || !after.Total.Equal(before.Total) {
		t.Errorf("expected cart unchanged, before %+v after %+v", before, after)
	}
	if after.State != domain.SaleStateOpen {
		t.Errorf("expected open state, got %s", after.State)
	}
	if inv.stock("P1") != 3 {
		t.Errorf("expected reservation kept (stock 3), got %d", inv.stock("P1"))
	}

	rec.mu.Lock()
	rec.err = nil
	rec.mu.Unlock()

	if _, err := svc.Checkout(ctx); err != nil {
		t.Fatalf("retry checkout failed: %v", err)
	}
	if rec.count() != 1 {
		t.Errorf("expected 1 sale after retry, got %d", rec.count())
	}
}

func TestCheckout_RetryAfterLostAckRecordsOnce(t *testing.T) {
	inv := newMockInventory(product("P1", "2.00", 5))
	rec := newMockRecorder()
	rec.lostAcks = 1
	svc := newTestService(t, inv, rec)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "P1", 1); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Checkout(ctx); !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got: %v", err)
	}

	sale, err := svc.Checkout(ctx)
	if err != nil {
		t.Fatalf("retry checkout failed: %v", err)
	}

	if rec.count() != 1 {
		t.Errorf("expected 1 sale recorded, got %d", rec.count())
	}
	ids := rec.attemptedIDs()
	if len(ids) != 2 || ids[0] != ids[1] || ids[0] != sale.ID {
		t.Errorf("expected both attempts to carry sale id %s, got %v", sale.ID, ids)
	}
	if inv.stock("P1") != 4 {
		t.Errorf("expected stock 4, got %d", inv.stock("P1"))
	}
}

func TestCheckout_EditedCartGetsNewSaleID(t *testing.T) {
	inv := newMockInventory(product("P1", "2.00", 5))
	rec := newMockRecorder()
	rec.err = errors.New("connection reset")
	svc := newTestService(t, inv, rec)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "P1", 1); err != nil {
		t.Fatal(err)
	}
	svc.Checkout(ctx)
	svc.Checkout(ctx)

	if _, err := svc.AddItem(ctx, "P1", 1); err != nil {
		t.Fatal(err)
	}
	svc.Checkout(ctx)

	ids := rec.attemptedIDs()
	if len(ids) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(ids))
	}
	if ids[0] != ids[1] {
		t.Errorf("expected retries of an unchanged cart to reuse the id, got %v", ids)
	}
	if ids[2] == ids[0] {
		t.Errorf("expected a new id after the cart changed, got %v", ids)
	}

	rec.setErr(nil)
	if _, err := svc.Checkout(ctx); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if rec.count() != 1 {
		t.Errorf("expected 1 sale recorded, got %d", rec.count())
	}
}

func TestCheckout_FreezesCart(t *testing.T) {
	inv := newMockInventory(product("P1", "2.00", 5))
	rec := newMockRecorder()
	rec.entered = make(chan struct{})
	rec.release = make(chan struct{})
	svc := newTestService(t, inv, rec)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "P1", 1); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Checkout(ctx)
		done <- err
	}()
	<-rec.entered

	if svc.State() != domain.SaleStateCommitting {
		t.Errorf("expected committing state, got %s", svc.State())
	}
	if _, err := svc.AddItem(ctx, "P1", 1); !errors.Is(err, domain.ErrCheckoutInProgress) {
		t.Errorf("expected ErrCheckoutInProgress on add, got: %v", err)
	}
	if _, err := svc.RemoveItem(ctx, 0); !errors.Is(err, domain.ErrCheckoutInProgress) {
		t.Errorf("expected ErrCheckoutInProgress on remove, got: %v", err)
	}
	if _, err := svc.Checkout(ctx); !errors.Is(err, domain.ErrCheckoutInProgress) {
		t.Errorf("expected ErrCheckoutInProgress on checkout, got: %v", err)
	}

	close(rec.release)
	if err := <-done; err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if inv.stock("P1") != 4 {
		t.Errorf("expected stock 4, got %d", inv.stock("P1"))
	}
}

func TestCheckout_NextSaleStartsOpen(t *testing.T) {
	inv := newMockInventory(product("P1", "1.50", 5))
	svc := newTestService(t, inv, newMockRecorder())
	ctx := context.Background()

	svc.AddItem(ctx, "P1", 1)
	if _, err := svc.Checkout(ctx); err != nil {
		t.Fatal(err)
	}

	snap, err := svc.AddItem(ctx, "P1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if snap.State != domain.SaleStateOpen {
		t.Errorf("expected open state, got %s", snap.State)
	}
	if snap.DisplayTotal() != "3.00" {
		t.Errorf("expected total 3.00, got %s", snap.DisplayTotal())
	}
}

func TestAbandon_ReleasesAllReservations(t *testing.T) {
	inv := newMockInventory(product("P1", "2.00", 5), product("P2", "1.00", 4))
	svc := newTestService(t, inv, newMockRecorder())
	ctx := context.Background()

	svc.AddItem(ctx, "P1", 2)
	svc.AddItem(ctx, "P2", 4)
	svc.AddItem(ctx, "P1", 1)

	snap, err := svc.Abandon(ctx)
	if err != nil {
		t.Fatalf("abandon failed: %v", err)
	}
	if len(snap.Lines) != 0 {
		t.Error("expected empty cart")
	}
	if inv.stock("P1") != 5 || inv.stock("P2") != 4 {
		t.Errorf("expected stock restored, got P1=%d P2=%d", inv.stock("P1"), inv.stock("P2"))
	}
}

func TestLookupProduct(t *testing.T) {
	inv := newMockInventory(product("P1", "2.00", 5))
	svc := newTestService(t, inv, newMockRecorder())

	p, err := svc.LookupProduct(context.Background(), "P1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Product P1" || p.Stock != 5 {
		t.Errorf("unexpected product: %+v", p)
	}
	if inv.mutations() != 0 {
		t.Error("lookup must not reserve stock")
	}

	if _, err := svc.LookupProduct(context.Background(), "nope"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got: %v", err)
	}
}

func TestAddItem_ConcurrentTerminals(t *testing.T) {
	initialStock := 10
	totalRequests := 50

	inv := newMockInventory(product("P1", "1.00", initialStock))
	rec := newMockRecorder()

	var successCount atomic.Int32
	var insufficientCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc := NewSaleService(inv, rec)
			_, err := svc.AddItem(context.Background(), "P1", 1)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficientCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successes, got %d", initialStock, successCount.Load())
	}
	if insufficientCount.Load() != int32(totalRequests-initialStock) {
		t.Errorf("expected %d insufficient stock failures, got %d", totalRequests-initialStock, insufficientCount.Load())
	}
	if inv.stock("P1") != 0 {
		t.Errorf("expected stock 0, got %d", inv.stock("P1"))
	}
}

func TestScenario_ReserveRemoveEmptyCheckout(t *testing.T) {
	inv := newMockInventory(product("P1", "2.00", 5))
	svc := newTestService(t, inv, newMockRecorder())
	ctx := context.Background()

	snap, err := svc.AddItem(ctx, "P1", 3)
	if err != nil || snap.DisplayTotal() != "6.00" {
		t.Fatalf("first add: total %s, err %v", snap.DisplayTotal(), err)
	}

	if _, err := svc.AddItem(ctx, "P1", 3); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("second add: expected ErrInsufficientStock, got %v", err)
	}

	snap, err = svc.RemoveItem(ctx, 0)
	if err != nil || len(snap.Lines) != 0 {
		t.Fatalf("remove: lines %d, err %v", len(snap.Lines), err)
	}
	if inv.stock("P1") != 5 {
		t.Errorf("expected stock 5, got %d", inv.stock("P1"))
	}

	if _, err := svc.Checkout(ctx); !errors.Is(err, domain.ErrEmptyCart) {
		t.Errorf("expected ErrEmptyCart, got %v", err)
	}
}

func ExampleSaleService_AddItem() {
	inv := newMockInventory(product("P1", "2.00", 5))
	svc := NewSaleService(inv, newMockRecorder())

	snap, _ := svc.AddItem(context.Background(), "P1", 3)
	fmt.Println(snap.DisplayTotal(), inv.stock("P1"))
	// Output: 6.00 2
}
