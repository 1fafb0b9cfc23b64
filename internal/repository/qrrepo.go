package repository

import (
	"context"

	"github.com/and161185/campus-vote/internal/model"
)

// QRRepository stores issued QR links and the replay-hash ledger.
type QRRepository interface {
	// CreateLink inserts an administrator-issued QR link.
	CreateLink(ctx context.Context, l *model.QRLink) error
	// GetLinkByHash loads a link by token hash.
	GetLinkByHash(ctx context.Context, hash string) (*model.QRLink, error)
	// IsUsed reports whether the hash is present in the replay ledger.
	IsUsed(ctx context.Context, hash string) (bool, error)
	// RecordUsage inserts the hash into the replay ledger and marks the
	// matching link used; a duplicate is ErrConflict.
	RecordUsage(ctx context.Context, u model.QRUsage) error
}
