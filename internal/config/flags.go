package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/and161185/campus-vote/internal/errs"
)

// applyFlags overlays command-line flags; defaults are the values loaded so far.
func applyFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("vote-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.String("config", "", "path to JSON config file")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus listen address (empty disables)")
	fs.StringVar(&cfg.DSN, "dsn", cfg.DSN, "PostgreSQL DSN")
	fs.StringVar(&cfg.JWTKey, "jwt-key", cfg.JWTKey, "HS256 bearer signing key (required)")
	fs.StringVar(&cfg.TLSCert, "tls-cert", cfg.TLSCert, "TLS certificate (PEM)")
	fs.StringVar(&cfg.TLSKey, "tls-key", cfg.TLSKey, "TLS private key (PEM)")
	fs.BoolVar(&cfg.Dev, "dev", cfg.Dev, "enable server reflection (dev only)")
	fs.BoolVar(&cfg.Insecure, "insecure", cfg.Insecure, "serve without TLS (dev only)")

	fs.StringVar(&cfg.QRSecret, "qr-secret", cfg.QRSecret, "QR token secret (required)")
	fs.DurationVar(&cfg.QRMaxAge, "qr-max-age", cfg.QRMaxAge, "QR token max age")

	fs.DurationVar(&cfg.ABACCacheTTL, "abac-cache-ttl", cfg.ABACCacheTTL, "ABAC decision TTL")
	fs.IntVar(&cfg.ABACCacheSize, "abac-cache-size", cfg.ABACCacheSize, "in-process ABAC cache size")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for shared ABAC cache and limiter")

	fs.DurationVar(&cfg.QRVerifyWindow, "qr-verify-window", cfg.QRVerifyWindow, "QR verify failure window")
	fs.IntVar(&cfg.QRVerifyMaxFails, "qr-verify-max-fails", cfg.QRVerifyMaxFails, "QR verify failures before block")
	fs.DurationVar(&cfg.QRVerifyBlock, "qr-verify-block", cfg.QRVerifyBlock, "QR verify block duration")

	k := &cfg.Keys
	fs.StringVar(&k.Backend, "key-backend", k.Backend, "key backend: local or kms")
	fs.StringVar(&k.Local.Dir, "keys-dir", k.Local.Dir, "directory with PEM keys")
	fs.StringVar(&k.KMS.Region, "kms-region", k.KMS.Region, "AWS KMS region")
	fs.StringVar(&k.KMS.Endpoint, "kms-endpoint", k.KMS.Endpoint, "AWS KMS endpoint override")
	fs.StringVar(&k.KMS.VoteKeyID, "kms-vote-key-id", k.KMS.VoteKeyID, "KMS key id for ballot encryption")
	fs.StringVar(&k.KMS.TallyKeyID, "kms-tally-key-id", k.KMS.TallyKeyID, "KMS key id for tally signing")
	fs.DurationVar(&k.KMS.Timeout, "kms-timeout", k.KMS.Timeout, "per-call KMS timeout")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrConfiguration, err)
	}
	return nil
}
