package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of a pgx pool the limiter needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PG keeps counters in the rate_limits table.
type PG struct {
	q      Querier
	policy Policy
	now    func() time.Time
}

// NewPG constructs a PostgreSQL-backed limiter.
func NewPG(q Querier, p Policy) *PG {
	return &PG{q: q, policy: p.normalized(), now: time.Now}
}

func (l *PG) Allow(ctx context.Context, scope string, subject []byte) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM rate_limits WHERE scope=$1 AND subject=$2`
	var until time.Time
	err := l.q.QueryRow(ctx, q, scope, subject).Scan(&until)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	if left := until.Sub(l.now()); left > 0 {
		return false, left, nil
	}
	return true, 0, nil
}

func (l *PG) Success(ctx context.Context, scope string, subject []byte) error {
	const q = `DELETE FROM rate_limits WHERE scope=$1 AND subject=$2`
	_, err := l.q.Exec(ctx, q, scope, subject)
	return err
}

// Failure bumps the counter, restarting it when the previous failure fell
// outside the window. Reaching the threshold sets blocked_until and
// clears the counter.
func (l *PG) Failure(ctx context.Context, scope string, subject []byte) (bool, time.Duration, error) {
	now := l.now()
	const bump = `
INSERT INTO rate_limits AS rl (scope, subject, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 1, 'epoch', $3)
ON CONFLICT (scope, subject) DO UPDATE
SET fail_count = CASE WHEN rl.updated_at < $4 THEN 1 ELSE rl.fail_count + 1 END,
    updated_at = $3
RETURNING fail_count`
	var fails int
	if err := l.q.QueryRow(ctx, bump, scope, subject, now, now.Add(-l.policy.Window)).Scan(&fails); err != nil {
		return false, 0, err
	}
	if fails < l.policy.MaxFails {
		return false, 0, nil
	}

	const block = `UPDATE rate_limits SET blocked_until=$3, fail_count=0 WHERE scope=$1 AND subject=$2`
	if _, err := l.q.Exec(ctx, block, scope, subject, now.Add(l.policy.Block)); err != nil {
		return false, 0, err
	}
	return true, l.policy.Block, nil
}
