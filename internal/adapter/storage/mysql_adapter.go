package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/granasat/partledger/internal/core/domain"
)

// MySQL error numbers for lock wait timeout and deadlock. Both mean the
// transaction was rolled back without committing anything, so the whole
// operation is safe to retry.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

const stockColumns = `id, part_id, vendor_id, part_name, vendor_name, vendor_code,
	vendor_url, image_url, storage_place_id, quantity, created_at, updated_at`

// MySQLAdapter is the source of truth for the ledger. Every quantity write
// commits in the same SQL transaction as the history row recording it, under
// an exclusive row lock on the stock line.
type MySQLAdapter struct {
	db *sqlx.DB
}

func NewMySQLAdapter(db *sqlx.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) CreateStock(ctx context.Context, stock *domain.Stock, initial int, actor string) (*domain.StockMutation, error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	s := *stock
	s.Quantity = 0
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock (id, part_id, vendor_id, part_name, vendor_name, vendor_code,
			vendor_url, image_url, storage_place_id, quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		s.ID, s.PartID, s.VendorID, s.PartName, s.VendorName, s.VendorCode,
		s.VendorURL, s.ImageURL, s.StoragePlaceID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert stock: %w", err)
	}

	mut, err := applyDeltaTx(ctx, tx, s.ID, initial, actor)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, conflictOr(s.ID, fmt.Errorf("commit: %w", err))
	}

	return mut, nil
}

func (m *MySQLAdapter) ApplyDelta(ctx context.Context, stockID string, delta int, actor string) (*domain.StockMutation, error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	mut, err := applyDeltaTx(ctx, tx, stockID, delta, actor)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, conflictOr(stockID, fmt.Errorf("commit: %w", err))
	}

	return mut, nil
}

// applyDeltaTx does the serialized read-modify-write plus history append
// inside the caller's transaction. The FOR UPDATE lock on the stock row is
// the per-line critical section: concurrent mutations of the same line queue
// behind it and commit first-come-first-served.
func applyDeltaTx(ctx context.Context, tx *sqlx.Tx, stockID string, delta int, actor string) (*domain.StockMutation, error) {
	var stock domain.Stock
	err := tx.GetContext(ctx, &stock,
		`SELECT `+stockColumns+` FROM stock WHERE id = ? FOR UPDATE`, stockID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: "stock", ID: stockID}
	}
	if err != nil {
		return nil, conflictOr(stockID, fmt.Errorf("lock stock: %w", err))
	}

	newQuantity := stock.Quantity + delta
	if newQuantity < 0 {
		return nil, &domain.InsufficientStockError{StockID: stockID, Current: stock.Quantity, Delta: delta}
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE stock SET quantity = ?, updated_at = ? WHERE id = ?`,
		newQuantity, now, stockID)
	if err != nil {
		return nil, conflictOr(stockID, fmt.Errorf("update quantity: %w", err))
	}

	txn := domain.Transaction{
		ID:                uuid.NewString(),
		StockID:           stockID,
		Delta:             delta,
		ResultingQuantity: newQuantity,
		Actor:             actor,
		CreatedAt:         now,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_transactions (id, stock_id, delta, resulting_quantity, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.StockID, txn.Delta, txn.ResultingQuantity, txn.Actor, txn.CreatedAt,
	)
	if err != nil {
		return nil, conflictOr(stockID, fmt.Errorf("append transaction: %w", err))
	}

	stock.Quantity = newQuantity
	stock.UpdatedAt = now

	return &domain.StockMutation{Stock: stock, Transaction: txn}, nil
}

func (m *MySQLAdapter) GetStock(ctx context.Context, id string) (*domain.Stock, error) {
	var stock domain.Stock
	err := m.db.GetContext(ctx, &stock,
		`SELECT `+stockColumns+` FROM stock WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: "stock", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("query stock: %w", err)
	}

	return &stock, nil
}

func (m *MySQLAdapter) FindStock(ctx context.Context, partID, vendorID string) (*domain.Stock, error) {
	var stock domain.Stock
	err := m.db.GetContext(ctx, &stock,
		`SELECT `+stockColumns+` FROM stock WHERE part_id = ? AND vendor_id = ? ORDER BY created_at LIMIT 1`,
		partID, vendorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find stock: %w", err)
	}

	return &stock, nil
}

func (m *MySQLAdapter) SearchStock(ctx context.Context, query string) ([]domain.Stock, error) {
	pattern := "%" + query + "%"

	var stocks []domain.Stock
	err := m.db.SelectContext(ctx, &stocks, `
		SELECT `+stockColumns+` FROM stock
		WHERE part_name LIKE ? OR vendor_name LIKE ? OR vendor_code LIKE ? OR vendor_url LIKE ?
		ORDER BY part_name, id`,
		pattern, pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("search stock: %w", err)
	}

	return stocks, nil
}

func (m *MySQLAdapter) ListStock(ctx context.Context) ([]domain.Stock, error) {
	var stocks []domain.Stock
	err := m.db.SelectContext(ctx, &stocks,
		`SELECT `+stockColumns+` FROM stock ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}

	return stocks, nil
}

func (m *MySQLAdapter) ListForStock(ctx context.Context, stockID string) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	err := m.db.SelectContext(ctx, &txns, `
		SELECT id, stock_id, delta, resulting_quantity, actor, created_at
		FROM stock_transactions WHERE stock_id = ?
		ORDER BY created_at, id`, stockID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	return txns, nil
}

func (m *MySQLAdapter) SumDeltas(ctx context.Context, stockID string) (int, error) {
	var sum int
	err := m.db.GetContext(ctx, &sum,
		`SELECT COALESCE(SUM(delta), 0) FROM stock_transactions WHERE stock_id = ?`, stockID)
	if err != nil {
		return 0, fmt.Errorf("sum deltas: %w", err)
	}

	return sum, nil
}

// conflictOr wraps lock wait timeouts and deadlocks as ConflictError so the
// caller knows the operation committed nothing and can retry it whole.
func conflictOr(stockID string, err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		if mysqlErr.Number == mysqlErrLockWaitTimeout || mysqlErr.Number == mysqlErrDeadlock {
			return &domain.ConflictError{StockID: stockID, Err: err}
		}
	}
	return err
}
