package domain

import "time"

// AuditMismatch records one stock line whose stored quantity disagrees with
// the sum of its transaction history.
type AuditMismatch struct {
	StockID  string `bson:"stock_id" json:"stock_id"`
	Quantity int    `bson:"quantity" json:"quantity"`
	SumDelta int    `bson:"sum_delta" json:"sum_delta"`
}

// AuditReport is the outcome of one full invariant sweep over the ledger.
type AuditReport struct {
	ID         string          `bson:"_id" json:"id"`
	CheckedAt  time.Time       `bson:"checked_at" json:"checked_at"`
	StockCount int             `bson:"stock_count" json:"stock_count"`
	Mismatches []AuditMismatch `bson:"mismatches" json:"mismatches"`
}

// Clean reports whether the sweep found no mismatches.
func (r *AuditReport) Clean() bool { return len(r.Mismatches) == 0 }
