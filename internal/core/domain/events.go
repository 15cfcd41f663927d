package domain

import "time"

const (
	EventStockCreated  = "stock.created"
	EventStockAdjusted = "stock.adjusted"
)

// StockEvent is published after a ledger mutation commits. Consumers get the
// committed delta and the resulting quantity; the ledger itself never depends
// on the event stream.
type StockEvent struct {
	Type      string    `json:"type"`
	StockID   string    `json:"stock_id"`
	PartID    string    `json:"part_id"`
	VendorID  string    `json:"vendor_id"`
	Delta     int       `json:"delta"`
	Quantity  int       `json:"quantity"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}
