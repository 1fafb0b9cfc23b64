// Package metrics exposes named counters over Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter names.
const (
	VoteCast          = "vote_cast_total"
	VoteCastFailed    = "vote_cast_failed_total"
	VoteUnsigned      = "vote_unsigned_total"
	QRVerify          = "qr_verify_total"
	QRVerifyFailed    = "qr_verify_failed_total"
	TokenIssued       = "token_issued_total"
	ABACCacheHit      = "abac_cache_hit_total"
	ABACCacheMiss     = "abac_cache_miss_total"
	AuditWriteFailure = "audit_write_failed_total"
)

var help = map[string]string{
	VoteCast:          "Ballots recorded.",
	VoteCastFailed:    "Cast attempts aborted.",
	VoteUnsigned:      "Ballots stored without a tally signature.",
	QRVerify:          "QR tokens verified.",
	QRVerifyFailed:    "QR verifications that failed.",
	TokenIssued:       "Vote tokens issued or re-issued.",
	ABACCacheHit:      "ABAC decisions served from cache.",
	ABACCacheMiss:     "ABAC decisions evaluated.",
	AuditWriteFailure: "Audit events that could not be stored.",
}

// Sink accepts counter increments. Implementations must not block or panic.
type Sink interface {
	Inc(name string)
}

// Registry holds the process counters.
type Registry struct {
	reg      *prometheus.Registry
	counters map[string]prometheus.Counter
}

// New registers every known counter on a fresh registry.
func New() *Registry {
	r := &Registry{reg: prometheus.NewRegistry(), counters: make(map[string]prometheus.Counter, len(help))}
	for name, h := range help {
		c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: "campusvote", Name: name, Help: h})
		r.reg.MustRegister(c)
		r.counters[name] = c
	}
	return r
}

// Inc bumps a counter; unknown names are ignored.
func (r *Registry) Inc(name string) {
	if c, ok := r.counters[name]; ok {
		c.Inc()
	}
}

func (r *Registry) CacheHit()  { r.Inc(ABACCacheHit) }
func (r *Registry) CacheMiss() { r.Inc(ABACCacheMiss) }

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests and exporters.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Nop discards increments.
type Nop struct{}

func (Nop) Inc(string) {}
