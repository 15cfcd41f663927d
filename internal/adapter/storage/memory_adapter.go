package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/granasat/partledger/internal/core/domain"
)

// MemoryAdapter keeps the ledger in process memory. It backs the unit tests
// and local runs without a database; a single mutex stands in for the
// database's row locks, which keeps every mutation serialized and the
// quantity/history pair atomic.
type MemoryAdapter struct {
	mu     sync.Mutex
	stocks map[string]domain.Stock
	txns   map[string][]domain.Transaction
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		stocks: make(map[string]domain.Stock),
		txns:   make(map[string][]domain.Transaction),
	}
}

func (m *MemoryAdapter) CreateStock(ctx context.Context, stock *domain.Stock, initial int, actor string) (*domain.StockMutation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	s := *stock
	s.Quantity = 0
	s.CreatedAt = now
	s.UpdatedAt = now
	m.stocks[s.ID] = s

	mut, err := m.applyLocked(s.ID, initial, actor)
	if err != nil {
		delete(m.stocks, s.ID)
		return nil, err
	}

	return mut, nil
}

func (m *MemoryAdapter) ApplyDelta(ctx context.Context, stockID string, delta int, actor string) (*domain.StockMutation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.applyLocked(stockID, delta, actor)
}

func (m *MemoryAdapter) applyLocked(stockID string, delta int, actor string) (*domain.StockMutation, error) {
	stock, ok := m.stocks[stockID]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "stock", ID: stockID}
	}

	newQuantity := stock.Quantity + delta
	if newQuantity < 0 {
		return nil, &domain.InsufficientStockError{StockID: stockID, Current: stock.Quantity, Delta: delta}
	}

	now := time.Now().UTC()
	stock.Quantity = newQuantity
	stock.UpdatedAt = now
	m.stocks[stockID] = stock

	txn := domain.Transaction{
		ID:                uuid.NewString(),
		StockID:           stockID,
		Delta:             delta,
		ResultingQuantity: newQuantity,
		Actor:             actor,
		CreatedAt:         now,
	}
	m.txns[stockID] = append(m.txns[stockID], txn)

	return &domain.StockMutation{Stock: stock, Transaction: txn}, nil
}

func (m *MemoryAdapter) GetStock(ctx context.Context, id string) (*domain.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stock, ok := m.stocks[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "stock", ID: id}
	}

	return &stock, nil
}

func (m *MemoryAdapter) FindStock(ctx context.Context, partID, vendorID string) (*domain.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found *domain.Stock
	for _, stock := range m.stocks {
		if stock.PartID != partID || stock.VendorID != vendorID {
			continue
		}
		s := stock
		if found == nil || s.CreatedAt.Before(found.CreatedAt) {
			found = &s
		}
	}

	return found, nil
}

func (m *MemoryAdapter) SearchStock(ctx context.Context, query string) ([]domain.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := strings.ToLower(query)
	var stocks []domain.Stock
	for _, stock := range m.stocks {
		if containsFold(stock.PartName, q) ||
			containsFold(stock.VendorName, q) ||
			containsFold(stock.VendorCode, q) ||
			containsFold(stock.VendorURL, q) {
			stocks = append(stocks, stock)
		}
	}

	sort.Slice(stocks, func(i, j int) bool {
		if stocks[i].PartName != stocks[j].PartName {
			return stocks[i].PartName < stocks[j].PartName
		}
		return stocks[i].ID < stocks[j].ID
	})

	return stocks, nil
}

func (m *MemoryAdapter) ListStock(ctx context.Context) ([]domain.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stocks := make([]domain.Stock, 0, len(m.stocks))
	for _, stock := range m.stocks {
		stocks = append(stocks, stock)
	}
	sort.Slice(stocks, func(i, j int) bool { return stocks[i].ID < stocks[j].ID })

	return stocks, nil
}

func (m *MemoryAdapter) ListForStock(ctx context.Context, stockID string) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	txns := make([]domain.Transaction, len(m.txns[stockID]))
	copy(txns, m.txns[stockID])

	return txns, nil
}

func (m *MemoryAdapter) SumDeltas(ctx context.Context, stockID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sum := 0
	for _, txn := range m.txns[stockID] {
		sum += txn.Delta
	}

	return sum, nil
}

func containsFold(s, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(s), lowerQuery)
}
