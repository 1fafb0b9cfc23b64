package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/and161185/campus-vote/internal/model"
)

// AuditRepo implements AuditRepository using PostgreSQL.
type AuditRepo struct{ db *DB }

// NewAuditRepo constructs an audit repository.
func NewAuditRepo(db *DB) *AuditRepo { return &AuditRepo{db: db} }

// Append writes one audit_log row. An address that is not an IP is stored as NULL.
func (r *AuditRepo) Append(ctx context.Context, e model.AuditEvent) error {
	meta := e.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	const q = `
INSERT INTO audit_log (user_id, action, ip_address, meta)
VALUES ($1, $2, $3, $4)`
	_, err = r.db.Pool.Exec(ctx, q, e.UserID, e.Action, inetOrNull(e.IP), string(b))
	return err
}
