package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/granasat/partledger/internal/adapter/storage"
	"github.com/granasat/partledger/internal/core/domain"
)

// Mock CacheRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	idempotencySet map[string]bool
	quantities     map[string]int
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{
		idempotencySet: make(map[string]bool),
		quantities:     make(map[string]int),
	}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) DeleteIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	return nil
}

func (m *mockCacheRepo) SetQuantity(ctx context.Context, stockID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quantities[stockID] = quantity
	return nil
}

func (m *mockCacheRepo) GetQuantity(ctx context.Context, stockID string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	quantity, ok := m.quantities[stockID]
	return quantity, ok, nil
}

// Mock Registry that resolves a fixed set of identifiers
type mockRegistry struct {
	parts   map[string]string
	vendors map[string]string
	places  map[string]string
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		parts:   map[string]string{"part-x": "LM317", "part-y": "BC547"},
		vendors: map[string]string{"vendor-y": "Mouser", "vendor-z": "Digi-Key"},
		places:  map[string]string{"storage-z": "Shelf A3"},
	}
}

func (m *mockRegistry) ResolvePart(ctx context.Context, id string) (*domain.Part, error) {
	name, ok := m.parts[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "part", ID: id}
	}
	return &domain.Part{ID: id, Name: name}, nil
}

func (m *mockRegistry) ResolveVendor(ctx context.Context, id string) (*domain.Vendor, error) {
	name, ok := m.vendors[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "vendor", ID: id}
	}
	return &domain.Vendor{ID: id, Name: name}, nil
}

func (m *mockRegistry) ResolveStoragePlace(ctx context.Context, id string) (*domain.StoragePlace, error) {
	name, ok := m.places[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "storage place", ID: id}
	}
	return &domain.StoragePlace{ID: id, Name: name}, nil
}

type fixture struct {
	store  *storage.MemoryAdapter
	cache  *mockCacheRepo
	ledger *LedgerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := storage.NewMemoryAdapter()
	cache := newMockCacheRepo()
	ledger := NewLedgerService(store, store, cache, newMockRegistry(), 1000, nil)

	// Drain event queue
	go func() {
		for range ledger.GetEventQueue() {
		}
	}()
	t.Cleanup(ledger.Close)

	return &fixture{store: store, cache: cache, ledger: ledger}
}

func (f *fixture) createStock(t *testing.T, quantity int) string {
	t.Helper()

	mut, err := f.ledger.CreateStock(context.Background(), CreateStockParams{
		PartID:         "part-x",
		VendorID:       "vendor-y",
		VendorCode:     "V-100",
		VendorURL:      "http://v",
		StoragePlaceID: "storage-z",
		Quantity:       quantity,
		Actor:          "tester",
	})
	if err != nil {
		t.Fatalf("createStock failed: %v", err)
	}
	return mut.Stock.ID
}

func TestCreateStock(t *testing.T) {
	f := newFixture(t)

	mut, err := f.ledger.CreateStock(context.Background(), CreateStockParams{
		PartID:         "part-x",
		VendorID:       "vendor-y",
		VendorCode:     "V-100",
		VendorURL:      "http://v",
		StoragePlaceID: "storage-z",
		Quantity:       10,
		Actor:          "tester",
	})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if mut.Stock.Quantity != 10 {
		t.Errorf("expected quantity 10, got %d", mut.Stock.Quantity)
	}
	if mut.Stock.PartName != "LM317" {
		t.Errorf("expected denormalized part name LM317, got %q", mut.Stock.PartName)
	}
	if mut.Transaction.Delta != 10 {
		t.Errorf("expected initial delta 10, got %d", mut.Transaction.Delta)
	}
	if mut.Transaction.ResultingQuantity != 10 {
		t.Errorf("expected resulting quantity 10, got %d", mut.Transaction.ResultingQuantity)
	}
	if mut.Transaction.Actor != "tester" {
		t.Errorf("expected actor tester, got %q", mut.Transaction.Actor)
	}

	history, err := f.ledger.GetHistory(context.Background(), mut.Stock.ID)
	if err != nil {
		t.Fatalf("getHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(history))
	}
}

func TestCreateStock_NegativeQuantity(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.CreateStock(context.Background(), CreateStockParams{
		PartID:         "part-x",
		VendorID:       "vendor-y",
		StoragePlaceID: "storage-z",
		Quantity:       -1,
		Actor:          "tester",
	})

	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Errorf("expected ValidationError, got: %v", err)
	}
}

func TestCreateStock_UnknownPart(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.CreateStock(context.Background(), CreateStockParams{
		PartID:         "part-nope",
		VendorID:       "vendor-y",
		StoragePlaceID: "storage-z",
		Quantity:       5,
		Actor:          "tester",
	})

	var notFoundErr *domain.NotFoundError
	if !errors.As(err, &notFoundErr) {
		t.Fatalf("expected NotFoundError, got: %v", err)
	}
	if notFoundErr.Kind != "part" {
		t.Errorf("expected part not found, got %s", notFoundErr.Kind)
	}
}

func TestCreateStock_MissingActor(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.CreateStock(context.Background(), CreateStockParams{
		PartID:         "part-x",
		VendorID:       "vendor-y",
		StoragePlaceID: "storage-z",
		Quantity:       5,
	})

	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Errorf("expected ValidationError, got: %v", err)
	}
}

func TestCreateStock_SecondLineForSamePair(t *testing.T) {
	f := newFixture(t)

	first := f.createStock(t, 10)
	second := f.createStock(t, 5)

	if first == second {
		t.Fatal("expected two independent stock lines")
	}

	stock, err := f.ledger.GetStock(context.Background(), first)
	if err != nil {
		t.Fatalf("getStock failed: %v", err)
	}
	if stock.Quantity != 10 {
		t.Errorf("first line must be untouched, got quantity %d", stock.Quantity)
	}
}

func TestModifyStock_Remove(t *testing.T) {
	f := newFixture(t)
	stockID := f.createStock(t, 10)

	mut, err := f.ledger.ModifyStock(context.Background(), ModifyStockParams{
		StockID: stockID,
		Delta:   -3,
		Actor:   "tester",
	})
	if err != nil {
		t.Fatalf("modifyStock failed: %v", err)
	}

	if mut.Stock.Quantity != 7 {
		t.Errorf("expected quantity 7, got %d", mut.Stock.Quantity)
	}
	if mut.Transaction.Delta != -3 {
		t.Errorf("expected delta -3, got %d", mut.Transaction.Delta)
	}
	if mut.Transaction.ResultingQuantity != 7 {
		t.Errorf("expected resulting quantity 7, got %d", mut.Transaction.ResultingQuantity)
	}
}

func TestModifyStock_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	stockID := f.createStock(t, 2)

	_, err := f.ledger.ModifyStock(context.Background(), ModifyStockParams{
		StockID: stockID,
		Delta:   -5,
		Actor:   "tester",
	})

	var insufficientErr *domain.InsufficientStockError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("expected InsufficientStockError, got: %v", err)
	}
	if insufficientErr.Current != 2 || insufficientErr.Delta != -5 {
		t.Errorf("expected current 2 delta -5, got current %d delta %d",
			insufficientErr.Current, insufficientErr.Delta)
	}

	// State unchanged: quantity still 2, no new transaction
	stock, err := f.ledger.GetStock(context.Background(), stockID)
	if err != nil {
		t.Fatalf("getStock failed: %v", err)
	}
	if stock.Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", stock.Quantity)
	}
	history, _ := f.ledger.GetHistory(context.Background(), stockID)
	if len(history) != 1 {
		t.Errorf("expected 1 transaction, got %d", len(history))
	}
}

func TestModifyStock_ZeroDelta(t *testing.T) {
	f := newFixture(t)
	stockID := f.createStock(t, 10)

	_, err := f.ledger.ModifyStock(context.Background(), ModifyStockParams{
		StockID: stockID,
		Delta:   0,
		Actor:   "tester",
	})

	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Errorf("expected ValidationError, got: %v", err)
	}
}

func TestModifyStock_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.ModifyStock(context.Background(), ModifyStockParams{
		StockID: "no-such-stock",
		Delta:   1,
		Actor:   "tester",
	})

	var notFoundErr *domain.NotFoundError
	if !errors.As(err, &notFoundErr) {
		t.Errorf("expected NotFoundError, got: %v", err)
	}
}

func TestModifyStock_DuplicateRequest(t *testing.T) {
	f := newFixture(t)
	stockID := f.createStock(t, 10)

	params := ModifyStockParams{
		StockID:   stockID,
		Delta:     -1,
		Actor:     "tester",
		RequestID: "req-1",
	}

	if _, err := f.ledger.ModifyStock(context.Background(), params); err != nil {
		t.Fatalf("first modify failed: %v", err)
	}

	_, err := f.ledger.ModifyStock(context.Background(), params)
	if !errors.Is(err, domain.ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got: %v", err)
	}

	// Delta applied exactly once
	stock, _ := f.ledger.GetStock(context.Background(), stockID)
	if stock.Quantity != 9 {
		t.Errorf("expected quantity 9, got %d", stock.Quantity)
	}
}

func TestModifyStock_RetryAfterFailedMutation(t *testing.T) {
	f := newFixture(t)
	stockID := f.createStock(t, 2)

	_, err := f.ledger.ModifyStock(context.Background(), ModifyStockParams{
		StockID:   stockID,
		Delta:     -5,
		Actor:     "tester",
		RequestID: "req-42",
	})
	var insufficientErr *domain.InsufficientStockError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("expected InsufficientStockError, got: %v", err)
	}

	// Nothing committed, so the same request id must be usable again.
	mut, err := f.ledger.ModifyStock(context.Background(), ModifyStockParams{
		StockID:   stockID,
		Delta:     -1,
		Actor:     "tester",
		RequestID: "req-42",
	})
	if err != nil {
		t.Fatalf("retry after failed mutation rejected: %v", err)
	}
	if mut.Stock.Quantity != 1 {
		t.Errorf("expected quantity 1, got %d", mut.Stock.Quantity)
	}
}

func TestCreateStock_RetryAfterFailedResolution(t *testing.T) {
	f := newFixture(t)

	params := CreateStockParams{
		PartID:         "part-nope",
		VendorID:       "vendor-y",
		StoragePlaceID: "storage-z",
		Quantity:       5,
		Actor:          "tester",
		RequestID:      "req-77",
	}

	var notFoundErr *domain.NotFoundError
	if _, err := f.ledger.CreateStock(context.Background(), params); !errors.As(err, &notFoundErr) {
		t.Fatalf("expected NotFoundError, got: %v", err)
	}

	// A failed resolution must not consume the request id.
	params.PartID = "part-x"
	mut, err := f.ledger.CreateStock(context.Background(), params)
	if err != nil {
		t.Fatalf("retry after failed resolution rejected: %v", err)
	}
	if mut.Stock.Quantity != 5 {
		t.Errorf("expected quantity 5, got %d", mut.Stock.Quantity)
	}
}

func TestModifyStock_Concurrent(t *testing.T) {
	f := newFixture(t)
	stockID := f.createStock(t, 0)

	totalRequests := 50
	var wg sync.WaitGroup
	var failCount atomic.Int32

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.ModifyStock(context.Background(), ModifyStockParams{
				StockID: stockID,
				Delta:   1,
				Actor:   "tester",
			})
			if err != nil {
				failCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if failCount.Load() != 0 {
		t.Fatalf("expected no failures, got %d", failCount.Load())
	}

	stock, _ := f.ledger.GetStock(context.Background(), stockID)
	if stock.Quantity != totalRequests {
		t.Errorf("expected quantity %d, got %d", totalRequests, stock.Quantity)
	}

	history, _ := f.ledger.GetHistory(context.Background(), stockID)
	if len(history) != totalRequests+1 {
		t.Errorf("expected %d transactions, got %d", totalRequests+1, len(history))
	}

	sum := 0
	for _, txn := range history {
		sum += txn.Delta
	}
	if sum != stock.Quantity {
		t.Errorf("invariant violated: quantity %d, sum %d", stock.Quantity, sum)
	}
}

func TestModifyStock_ConcurrentOpposingDeltas(t *testing.T) {
	f := newFixture(t)
	stockID := f.createStock(t, 10)

	var wg sync.WaitGroup
	for _, delta := range []int{5, -5} {
		wg.Add(1)
		go func(d int) {
			defer wg.Done()
			if _, err := f.ledger.ModifyStock(context.Background(), ModifyStockParams{
				StockID: stockID,
				Delta:   d,
				Actor:   "tester",
			}); err != nil {
				t.Errorf("modify %+d failed: %v", d, err)
			}
		}(delta)
	}
	wg.Wait()

	stock, _ := f.ledger.GetStock(context.Background(), stockID)
	if stock.Quantity != 10 {
		t.Errorf("expected quantity 10 in either commit order, got %d", stock.Quantity)
	}

	history, _ := f.ledger.GetHistory(context.Background(), stockID)
	if len(history) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(history))
	}

	// The last committed transaction lands on 10; the intermediate one
	// reflects the actual commit order, 15 or 5.
	last := history[len(history)-1]
	if last.ResultingQuantity != 10 {
		t.Errorf("expected final resulting quantity 10, got %d", last.ResultingQuantity)
	}
	middle := history[1]
	if middle.ResultingQuantity != 15 && middle.ResultingQuantity != 5 {
		t.Errorf("expected intermediate resulting quantity 15 or 5, got %d", middle.ResultingQuantity)
	}
}

func TestGetHistory_IdempotentReads(t *testing.T) {
	f := newFixture(t)
	stockID := f.createStock(t, 10)

	for _, delta := range []int{-2, 5, -1} {
		if _, err := f.ledger.ModifyStock(context.Background(), ModifyStockParams{
			StockID: stockID, Delta: delta, Actor: "tester",
		}); err != nil {
			t.Fatalf("modify failed: %v", err)
		}
	}

	first, err := f.ledger.GetHistory(context.Background(), stockID)
	if err != nil {
		t.Fatalf("getHistory failed: %v", err)
	}
	second, err := f.ledger.GetHistory(context.Background(), stockID)
	if err != nil {
		t.Fatalf("getHistory failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("histories differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("transaction %d differs between reads", i)
		}
	}
}

func TestLedgerInvariant(t *testing.T) {
	f := newFixture(t)
	stockID := f.createStock(t, 100)

	deltas := []int{-10, 25, -40, 3, -3, 1, -1, 7}
	for _, delta := range deltas {
		if _, err := f.ledger.ModifyStock(context.Background(), ModifyStockParams{
			StockID: stockID, Delta: delta, Actor: "tester",
		}); err != nil {
			t.Fatalf("modify %+d failed: %v", delta, err)
		}
	}

	stock, _ := f.ledger.GetStock(context.Background(), stockID)
	sum, err := f.store.SumDeltas(context.Background(), stockID)
	if err != nil {
		t.Fatalf("sumDeltas failed: %v", err)
	}
	if sum != stock.Quantity {
		t.Errorf("invariant violated: quantity %d, sum %d", stock.Quantity, sum)
	}
}

func TestFindStock(t *testing.T) {
	f := newFixture(t)
	stockID := f.createStock(t, 10)

	stock, err := f.ledger.FindStock(context.Background(), "part-x", "vendor-y")
	if err != nil {
		t.Fatalf("findStock failed: %v", err)
	}
	if stock.ID != stockID {
		t.Errorf("expected stock %s, got %s", stockID, stock.ID)
	}

	_, err = f.ledger.FindStock(context.Background(), "part-y", "vendor-z")
	var notFoundErr *domain.NotFoundError
	if !errors.As(err, &notFoundErr) {
		t.Errorf("expected NotFoundError, got: %v", err)
	}
}

func TestSearchStock(t *testing.T) {
	f := newFixture(t)
	f.createStock(t, 10)

	for _, query := range []string{"LM317", "Mouser", "V-100"} {
		stocks, err := f.ledger.SearchStock(context.Background(), query)
		if err != nil {
			t.Fatalf("search %q failed: %v", query, err)
		}
		if len(stocks) != 1 {
			t.Errorf("search %q: expected 1 result, got %d", query, len(stocks))
		}
	}

	stocks, err := f.ledger.SearchStock(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(stocks) != 0 {
		t.Errorf("expected no results, got %d", len(stocks))
	}
}

func TestGetQuantity_CachesReads(t *testing.T) {
	f := newFixture(t)
	stockID := f.createStock(t, 10)

	quantity, err := f.ledger.GetQuantity(context.Background(), stockID)
	if err != nil {
		t.Fatalf("getQuantity failed: %v", err)
	}
	if quantity != 10 {
		t.Errorf("expected quantity 10, got %d", quantity)
	}

	if cached, ok, _ := f.cache.GetQuantity(context.Background(), stockID); !ok || cached != 10 {
		t.Errorf("expected cached quantity 10, got %d (present=%v)", cached, ok)
	}
}

// failingStore rejects every mutation; the service must surface the error and
// produce no event.
type failingStore struct {
	*storage.MemoryAdapter
}

func (f *failingStore) ApplyDelta(ctx context.Context, stockID string, delta int, actor string) (*domain.StockMutation, error) {
	return nil, fmt.Errorf("storage unavailable")
}

func TestModifyStock_StoreFailureProducesNoEvent(t *testing.T) {
	inner := storage.NewMemoryAdapter()
	store := &failingStore{MemoryAdapter: inner}
	cache := newMockCacheRepo()
	ledger := NewLedgerService(store, inner, cache, newMockRegistry(), 10, nil)

	stockMut, err := inner.CreateStock(context.Background(), &domain.Stock{
		ID: "stock-1", PartID: "part-x", VendorID: "vendor-y",
	}, 5, "tester")
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	_, err = ledger.ModifyStock(context.Background(), ModifyStockParams{
		StockID: stockMut.Stock.ID,
		Delta:   -1,
		Actor:   "tester",
	})
	if err == nil {
		t.Fatal("expected error from failing store")
	}

	select {
	case event := <-ledger.GetEventQueue():
		t.Errorf("no event expected for a failed mutation, got %s", event.Type)
	default:
	}

	// Quantity and history untouched
	stock, _ := inner.GetStock(context.Background(), stockMut.Stock.ID)
	if stock.Quantity != 5 {
		t.Errorf("expected quantity 5, got %d", stock.Quantity)
	}
	history, _ := inner.ListForStock(context.Background(), stockMut.Stock.ID)
	if len(history) != 1 {
		t.Errorf("expected 1 transaction, got %d", len(history))
	}

	ledger.Close()
}

func TestEventsPublished(t *testing.T) {
	store := storage.NewMemoryAdapter()
	ledger := NewLedgerService(store, store, newMockCacheRepo(), newMockRegistry(), 10, nil)
	defer ledger.Close()

	mut, err := ledger.CreateStock(context.Background(), CreateStockParams{
		PartID:         "part-x",
		VendorID:       "vendor-y",
		StoragePlaceID: "storage-z",
		Quantity:       4,
		Actor:          "tester",
	})
	if err != nil {
		t.Fatalf("createStock failed: %v", err)
	}

	if _, err := ledger.ModifyStock(context.Background(), ModifyStockParams{
		StockID: mut.Stock.ID, Delta: -1, Actor: "tester",
	}); err != nil {
		t.Fatalf("modifyStock failed: %v", err)
	}

	created := <-ledger.GetEventQueue()
	if created.Type != domain.EventStockCreated || created.Delta != 4 {
		t.Errorf("unexpected first event: %+v", created)
	}

	adjusted := <-ledger.GetEventQueue()
	if adjusted.Type != domain.EventStockAdjusted || adjusted.Delta != -1 || adjusted.Quantity != 3 {
		t.Errorf("unexpected second event: %+v", adjusted)
	}
}
