// Package limiter locks out callers that keep failing a check, such as
// public QR verification probed with forged tokens.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Scopes used by the voting services.
const (
	ScopeQRVerify = "qr_verify"
)

// Policy is the lockout rule shared by all backends: MaxFails failures
// within Window block the subject for Block.
type Policy struct {
	Window   time.Duration
	MaxFails int
	Block    time.Duration
}

// DefaultPolicy is used for zero fields.
var DefaultPolicy = Policy{Window: 15 * time.Minute, MaxFails: 10, Block: 15 * time.Minute}

func (p Policy) normalized() Policy {
	if p.Window <= 0 {
		p.Window = DefaultPolicy.Window
	}
	if p.MaxFails <= 0 {
		p.MaxFails = DefaultPolicy.MaxFails
	}
	if p.Block <= 0 {
		p.Block = DefaultPolicy.Block
	}
	return p
}

// Limiter counts failures per (scope, subject) and places temporary blocks.
type Limiter interface {
	// Allow reports whether the subject may proceed and, if not, the time left on the block.
	Allow(ctx context.Context, scope string, subject []byte) (bool, time.Duration, error)
	// Success resets counters for the subject.
	Success(ctx context.Context, scope string, subject []byte) error
	// Failure records a failed attempt and reports whether it placed a block.
	Failure(ctx context.Context, scope string, subject []byte) (bool, time.Duration, error)
}

// HashIP returns the subject key for a client address; raw addresses are never stored.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}
