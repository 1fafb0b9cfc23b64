package repository

import (
	"context"

	"github.com/and161185/campus-vote/internal/model"
)

// AuditRepository is the durable audit sink.
type AuditRepository interface {
	// Append stores a single audit event.
	Append(ctx context.Context, e model.AuditEvent) error
}
