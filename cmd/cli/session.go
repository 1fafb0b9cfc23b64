package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	errNoSession      = errors.New("not logged in (run login)")
	errSessionExpired = errors.New("session expired (run login)")
)

// session is the saved login: the bearer token and the principal it names.
type session struct {
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// store keeps the session under the user's config directory.
type store struct{ dir string }

func defaultStore() store {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return store{dir: filepath.Join(v, "campusvote")}
	}
	home, _ := os.UserHomeDir()
	return store{dir: filepath.Join(home, ".config", "campusvote")}
}

func (s store) path() string { return filepath.Join(s.dir, "session.json") }

// save replaces the session file atomically; it is readable by the owner only.
func (s store) save(sess session) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "session-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sess); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path())
}

func (s store) load(now time.Time) (session, error) {
	b, err := os.ReadFile(s.path())
	if errors.Is(err, fs.ErrNotExist) {
		return session{}, errNoSession
	}
	if err != nil {
		return session{}, err
	}
	var sess session
	if err := json.Unmarshal(b, &sess); err != nil {
		return session{}, fmt.Errorf("session file: %w", err)
	}
	if sess.AccessToken == "" {
		return session{}, errNoSession
	}
	if now.After(sess.ExpiresAt) {
		return session{}, errSessionExpired
	}
	return sess, nil
}

func (s store) clear() error {
	err := os.Remove(s.path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// mintToken signs an HS256 access token for sub. Meant for operators who
// hold the server's jwt key; voters receive tokens from the identity layer.
func mintToken(sub string, key []byte, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	return s, exp, err
}

// sessionFromToken reads sub and exp without verifying the signature; the
// server does that. A token without exp is kept for 15 minutes.
func sessionFromToken(tok string) session {
	var claims jwt.RegisteredClaims
	_, _, _ = jwt.NewParser().ParseUnverified(tok, &claims)
	sess := session{AccessToken: tok, UserID: claims.Subject, ExpiresAt: time.Now().Add(15 * time.Minute)}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess
}

// readAll reads a file, or stdin for "-".
func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}
