// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role is the principal's role within the university.
type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// Status is the lifecycle status of a principal's profile.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusArchived  Status = "archived"
)

// Profile carries the attributes ABAC decisions are based on.
type Profile struct {
	UserID     uuid.UUID
	Role       Role
	Status     Status
	Attributes map[string]any // free-form, e.g. "allowed_to_vote": false
	UpdatedAt  time.Time
}

// Principal is an authenticated voter or administrator.
// Profile is nil when the identity layer has no profile for the principal.
type Principal struct {
	ID      uuid.UUID
	Profile *Profile
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.Profile != nil && p.Profile.Role == RoleAdmin
}

// Position is a ballot position within an election.
type Position struct {
	ID         int64
	ElectionID int64
	Name       string
}

// Candidate is a ballot option for a position.
type Candidate struct {
	ID         int64
	PositionID int64
	ElectionID int64
	Name       string
	QRSlug     uuid.UUID
}

// VoteToken is a single-use right to cast one ballot in one election.
type VoteToken struct {
	Token      uuid.UUID // 128-bit random, unguessable
	UserID     uuid.UUID
	ElectionID int64
	Used       bool // monotonic false -> true
	CreatedAt  time.Time
}

// EncryptedVote is the immutable ballot record.
type EncryptedVote struct {
	ID               int64
	ElectionID       int64
	PositionID       int64
	CandidateID      int64
	EncryptedPayload string  // base64 RSA-OAEP ciphertext of "{candidate}|{token}"
	Signature        *string // base64 RSA-PSS signature of EncryptedPayload; nil if unsigned
	CreatedAt        time.Time
}

// Signed reports whether the vote carries a tally signature.
func (v EncryptedVote) Signed() bool { return v.Signature != nil && *v.Signature != "" }

// Consumption describes which single-use credentials a cast spends.
// Token is always spent; QRHash is spent only for signed-token casts.
type Consumption struct {
	Token       uuid.UUID
	UserID      uuid.UUID
	QRHash      string
	CandidateID int64
}

// QRClaims is the decoded payload of a signed QR capability token.
type QRClaims struct {
	UserID      uuid.UUID
	CandidateID int64
	IssuedAt    time.Time
}

// QRLink is an administrator-issued signed QR token with its own TTL and usage flag.
type QRLink struct {
	ID          int64
	Token       string
	TokenHash   string
	UserID      uuid.UUID
	CandidateID int64
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	Used        bool
}

// Expired reports whether the link has an explicit expiry in the past.
func (l QRLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// QRUsage is one row of the replay-hash ledger.
type QRUsage struct {
	TokenHash   string
	UserID      *uuid.UUID
	CandidateID *int64
	UsedAt      time.Time
}

// AuditEvent is a single entry for the audit sink.
type AuditEvent struct {
	UserID *uuid.UUID // nil for anonymous events such as QR scans
	Action string
	IP     string
	Meta   map[string]any
}

// IssuedQR is the result of issuing a signed QR capability.
type IssuedQR struct {
	Token     string
	TokenHash string
	Preview   string
	ExpiresAt *time.Time
}

// QRVerification is the outcome of standalone QR verification.
type QRVerification struct {
	Valid         bool
	Reason        string // empty when valid
	Detail        string // expired | invalid_signature, only for invalid_or_expired
	UserID        uuid.UUID
	CandidateID   int64
	CandidateName string
}

// QRCastResult is the outcome of a cast attempt via QR.
type QRCastResult struct {
	AwaitingConfirmation bool
	Candidate            Candidate
	Vote                 *EncryptedVote
}

// TallyResult is the count of one election's stored ballots.
// Only ballots that open cleanly are counted; the rest are tallied by fault.
type TallyResult struct {
	ElectionID    int64
	Ballots       int
	Counts        map[int64]int // candidate id -> counted ballots
	Unsigned      int           // counted, but carry no tally signature
	BadSignature  int
	Undecryptable int
	Mismatched    int // decrypted candidate differs from the stored column
	Duplicate     int // decrypted vote token seen on an earlier ballot
}
