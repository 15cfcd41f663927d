package domain

import "time"

// Transaction is an immutable audit record of one quantity change. Rows are
// only ever appended, never updated or deleted.
type Transaction struct {
	ID                string    `db:"id" json:"id"`
	StockID           string    `db:"stock_id" json:"stock"`
	Delta             int       `db:"delta" json:"delta"`
	ResultingQuantity int       `db:"resulting_quantity" json:"resulting_quantity"`
	Actor             string    `db:"actor" json:"actor"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// StockMutation is the committed outcome of one ledger operation: the stock
// line after the delta was applied and the transaction that recorded it.
type StockMutation struct {
	Stock       Stock
	Transaction Transaction
}
