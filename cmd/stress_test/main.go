package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/granasat/partledger/internal/adapter/storage"
	"github.com/granasat/partledger/internal/core/domain"
	"github.com/granasat/partledger/internal/core/service"
)

const (
	initialQuantity = 20
	totalRequests   = 50
	queueSize       = 100
)

// Hammers one stock line with concurrent removals against the in-memory
// store and verifies the ledger invariant afterwards: exactly initialQuantity
// removals may succeed and the history must sum to the final quantity.
func main() {
	ctx := context.Background()

	store := storage.NewMemoryAdapter()
	ledger := service.NewLedgerService(store, store, noopCache{}, staticRegistry{}, queueSize, zap.NewNop())
	defer ledger.Close()

	// Drain the event queue in background
	go func() {
		for range ledger.GetEventQueue() {
		}
	}()

	mut, err := ledger.CreateStock(ctx, service.CreateStockParams{
		PartID:         "part-1",
		VendorID:       "vendor-1",
		VendorCode:     "V-100",
		StoragePlaceID: "shelf-1",
		Quantity:       initialQuantity,
		Actor:          "stress",
	})
	if err != nil {
		log.Fatalf("failed to create stock: %v", err)
	}
	stockID := mut.Stock.ID

	var successCount atomic.Int32
	var failCount atomic.Int32
	var wg sync.WaitGroup

	start := time.Now()
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.ModifyStock(ctx, service.ModifyStockParams{
				StockID: stockID,
				Delta:   -1,
				Actor:   "stress",
			})
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	stock, err := ledger.GetStock(ctx, stockID)
	if err != nil {
		log.Fatalf("failed to read stock: %v", err)
	}
	sum, err := store.SumDeltas(ctx, stockID)
	if err != nil {
		log.Fatalf("failed to sum deltas: %v", err)
	}

	fmt.Printf("requests:  %d in %v\n", totalRequests, elapsed)
	fmt.Printf("succeeded: %d\n", successCount.Load())
	fmt.Printf("rejected:  %d\n", failCount.Load())
	fmt.Printf("quantity:  %d, sum(deltas): %d\n", stock.Quantity, sum)

	if successCount.Load() != initialQuantity {
		log.Fatalf("expected %d successes, got %d", initialQuantity, successCount.Load())
	}
	if stock.Quantity != 0 || sum != 0 {
		log.Fatalf("invariant violated: quantity %d, sum %d", stock.Quantity, sum)
	}
	fmt.Println("invariant holds")
}

type noopCache struct{}

func (noopCache) SetIdempotency(ctx context.Context, key string) (bool, error) { return true, nil }
func (noopCache) DeleteIdempotency(ctx context.Context, key string) error      { return nil }
func (noopCache) SetQuantity(ctx context.Context, stockID string, quantity int) error {
	return nil
}
func (noopCache) GetQuantity(ctx context.Context, stockID string) (int, bool, error) {
	return 0, false, nil
}

type staticRegistry struct{}

func (staticRegistry) ResolvePart(ctx context.Context, id string) (*domain.Part, error) {
	return &domain.Part{ID: id, Name: "part " + id}, nil
}
func (staticRegistry) ResolveVendor(ctx context.Context, id string) (*domain.Vendor, error) {
	return &domain.Vendor{ID: id, Name: "vendor " + id}, nil
}
func (staticRegistry) ResolveStoragePlace(ctx context.Context, id string) (*domain.StoragePlace, error) {
	return &domain.StoragePlace{ID: id, Name: "place " + id}, nil
}
