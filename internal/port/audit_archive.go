package port

import (
	"context"

	"github.com/granasat/partledger/internal/core/domain"
)

// AuditArchive stores invariant audit reports for later inspection.
type AuditArchive interface {
	SaveReport(ctx context.Context, report domain.AuditReport) error
}
