package driven

import (
	"context"

	"github.com/routeintel/fleetpanel/internal/domain/model"
)

// AuditStore defines the driven port for the append-only log of credential
// operations.
type AuditStore interface {
	// Append records one event. The adapter assigns nothing; ID and At must
	// already be set by the caller.
	Append(ctx context.Context, ev model.AuditEvent) error

	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]model.AuditEvent, error)
}
