package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/and161185/campus-vote/internal/errs"
)

// Duration accepts "5s" style strings or integer nanoseconds in JSON.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		d.Duration = time.Duration(x)
	case string:
		p, err := time.ParseDuration(x)
		if err != nil {
			return err
		}
		d.Duration = p
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// fileConfig mirrors Config for JSON files; pointers mark fields that are set.
type fileConfig struct {
	Addr        *string `json:"addr"`
	MetricsAddr *string `json:"metrics_addr"`
	DSN         *string `json:"dsn"`
	JWTKey      *string `json:"jwt_key"`
	TLSCert     *string `json:"tls_cert"`
	TLSKey      *string `json:"tls_key"`
	Dev         *bool   `json:"dev"`
	Insecure    *bool   `json:"insecure"`

	QRSecret *string   `json:"qr_secret"`
	QRMaxAge *Duration `json:"qr_max_age"`

	ABACCacheTTL  *Duration `json:"abac_cache_ttl"`
	ABACCacheSize *int      `json:"abac_cache_size"`
	RedisAddr     *string   `json:"redis_addr"`

	QRVerifyWindow   *Duration `json:"qr_verify_window"`
	QRVerifyMaxFails *int      `json:"qr_verify_max_fails"`
	QRVerifyBlock    *Duration `json:"qr_verify_block"`

	KeyBackend       *string `json:"key_backend"`
	KeysDir          *string `json:"keys_dir"`
	VotePrivateFile  *string `json:"vote_private_key_file"`
	VotePublicFile   *string `json:"vote_public_key_file"`
	TallyPrivateFile *string `json:"tally_private_key_file"`
	TallyPublicFile  *string `json:"tally_public_key_file"`

	KMSRegion     *string   `json:"kms_region"`
	KMSEndpoint   *string   `json:"kms_endpoint"`
	KMSAccessKey  *string   `json:"kms_access_key_id"`
	KMSSecretKey  *string   `json:"kms_secret_access_key"`
	KMSVoteKeyID  *string   `json:"kms_vote_key_id"`
	KMSTallyKeyID *string   `json:"kms_tally_key_id"`
	KMSTimeout    *Duration `json:"kms_timeout"`
}

// configFileArg finds -config / --config in args without a full parse.
func configFileArg(args []string) string {
	for i, a := range args {
		name, val, hasVal := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasVal {
			return val
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func applyJSON(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read config file: %v", errs.ErrConfiguration, err)
	}
	var fc fileConfig
	if err := json.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("%w: parse config file: %v", errs.ErrConfiguration, err)
	}

	setString(&cfg.Addr, fc.Addr)
	setString(&cfg.MetricsAddr, fc.MetricsAddr)
	setString(&cfg.DSN, fc.DSN)
	setString(&cfg.JWTKey, fc.JWTKey)
	setString(&cfg.TLSCert, fc.TLSCert)
	setString(&cfg.TLSKey, fc.TLSKey)
	setBool(&cfg.Dev, fc.Dev)
	setBool(&cfg.Insecure, fc.Insecure)
	setString(&cfg.QRSecret, fc.QRSecret)
	setDuration(&cfg.QRMaxAge, fc.QRMaxAge)
	setDuration(&cfg.ABACCacheTTL, fc.ABACCacheTTL)
	setInt(&cfg.ABACCacheSize, fc.ABACCacheSize)
	setString(&cfg.RedisAddr, fc.RedisAddr)
	setDuration(&cfg.QRVerifyWindow, fc.QRVerifyWindow)
	setInt(&cfg.QRVerifyMaxFails, fc.QRVerifyMaxFails)
	setDuration(&cfg.QRVerifyBlock, fc.QRVerifyBlock)

	k := &cfg.Keys
	setString(&k.Backend, fc.KeyBackend)
	setString(&k.Local.Dir, fc.KeysDir)
	setString(&k.Local.VotePrivateFile, fc.VotePrivateFile)
	setString(&k.Local.VotePublicFile, fc.VotePublicFile)
	setString(&k.Local.TallyPrivateFile, fc.TallyPrivateFile)
	setString(&k.Local.TallyPublicFile, fc.TallyPublicFile)
	setString(&k.KMS.Region, fc.KMSRegion)
	setString(&k.KMS.Endpoint, fc.KMSEndpoint)
	setString(&k.KMS.AccessKeyID, fc.KMSAccessKey)
	setString(&k.KMS.SecretAccessKey, fc.KMSSecretKey)
	setString(&k.KMS.VoteKeyID, fc.KMSVoteKeyID)
	setString(&k.KMS.TallyKeyID, fc.KMSTallyKeyID)
	setDuration(&k.KMS.Timeout, fc.KMSTimeout)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
