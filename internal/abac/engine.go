// Package abac decides whether a principal may perform an action.
//
// Rules are evaluated in order and the first match wins:
//
//	admin role                                   -> allow
//	status other than active                     -> deny
//	allowed_to_vote=false for issue_token/cast_vote -> deny
//	otherwise                                    -> allow
//
// A principal without a profile is denied. Decisions are cached briefly,
// keyed by a per-principal version that profile updates bump.
package abac

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/campus-vote/internal/model"
	"go.uber.org/zap"
)

// Actions.
const (
	ActionIssueToken = "issue_token"
	ActionCastVote   = "cast_vote"
	ActionIssueQR    = "issue_qr"
)

const (
	DefaultCacheTTL  = 5 * time.Second
	DefaultCacheSize = 2048
)

// Stats receives cache hit/miss notifications.
type Stats interface {
	CacheHit()
	CacheMiss()
}

// Engine evaluates policy rules. It never returns an error; cache
// failures fall through to evaluation.
type Engine struct {
	cache Cache
	ttl   time.Duration
	log   *zap.Logger
	stats Stats
}

// Option configures an Engine.
type Option func(*Engine)

// WithStats attaches a metrics sink.
func WithStats(s Stats) Option { return func(e *Engine) { e.stats = s } }

// WithTTL overrides the decision TTL.
func WithTTL(ttl time.Duration) Option { return func(e *Engine) { e.ttl = ttl } }

// NewEngine builds an engine. A nil cache disables caching.
func NewEngine(cache Cache, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{cache: cache, ttl: DefaultCacheTTL, log: log}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluate returns true when policy allows the action.
func (e *Engine) Evaluate(ctx context.Context, p model.Principal, action, resource string, attrs map[string]string) bool {
	if e.cache == nil {
		allow, rule := decide(p, action)
		e.log.Debug("abac decision", zap.String("principal", p.ID.String()),
			zap.String("action", action), zap.String("resource", resource),
			zap.Bool("allow", allow), zap.String("rule", rule))
		return allow
	}

	principal := p.ID.String()
	version, err := e.cache.Version(ctx, principal)
	if err != nil {
		e.log.Warn("abac version lookup failed", zap.Error(err))
	}
	key := cacheKey(principal, action, resource, version, contextHash(p, attrs))

	if allow, err := e.cache.Get(ctx, key); err == nil {
		if e.stats != nil {
			e.stats.CacheHit()
		}
		e.log.Debug("abac decision", zap.String("principal", principal),
			zap.String("action", action), zap.String("resource", resource),
			zap.Bool("allow", allow), zap.Bool("cached", true))
		return allow
	} else if !errors.Is(err, ErrCacheMiss) {
		e.log.Warn("abac cache get failed", zap.Error(err))
	}
	if e.stats != nil {
		e.stats.CacheMiss()
	}

	allow, rule := decide(p, action)
	if err := e.cache.Set(ctx, key, allow, e.ttl); err != nil {
		e.log.Warn("abac cache set failed", zap.Error(err))
	}
	e.log.Debug("abac decision", zap.String("principal", principal),
		zap.String("action", action), zap.String("resource", resource),
		zap.Bool("allow", allow), zap.String("rule", rule), zap.Bool("cached", false))
	return allow
}

// Invalidate orphans every cached decision for the principal.
func (e *Engine) Invalidate(ctx context.Context, principal string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.BumpVersion(ctx, principal); err != nil {
		e.log.Warn("abac invalidate failed", zap.String("principal", principal), zap.Error(err))
	}
}

func decide(p model.Principal, action string) (bool, string) {
	prof := p.Profile
	if prof == nil {
		return false, "no_profile"
	}
	if prof.Role == model.RoleAdmin {
		return true, "admin"
	}
	if prof.Status != model.StatusActive {
		return false, "inactive"
	}
	if action == ActionIssueToken || action == ActionCastVote {
		if v, ok := prof.Attributes["allowed_to_vote"].(bool); ok && !v {
			return false, "not_allowed_to_vote"
		}
	}
	return true, "default"
}

func cacheKey(principal, action, resource string, version int64, ctxHash string) string {
	var b strings.Builder
	b.WriteString("abac:decision:")
	b.WriteString(principal)
	b.WriteByte(':')
	b.WriteString(action)
	b.WriteByte(':')
	b.WriteString(resource)
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(version, 10))
	b.WriteByte(':')
	b.WriteString(ctxHash)
	return b.String()
}

// contextHash folds the request attributes and a profile fingerprint into
// a stable digest, so a profile change also changes the key.
func contextHash(p model.Principal, attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(attrs[k]))
		h.Write([]byte{0})
	}
	if prof := p.Profile; prof != nil {
		h.Write([]byte(prof.Role))
		h.Write([]byte{0})
		h.Write([]byte(prof.Status))
		h.Write([]byte{0})
		// json.Marshal sorts map keys.
		fp, _ := json.Marshal(prof.Attributes)
		h.Write(fp)
	} else {
		h.Write([]byte("no-profile"))
	}
	return hex.EncodeToString(h.Sum(nil))
}
