// Package votingv1 defines the campusvote.v1.Voting gRPC service: wire
// messages, the JSON codec they travel with, the service descriptor and a
// client.
package votingv1

import "time"

type IssueTokenRequest struct {
	ElectionID int64 `json:"election_id"`
}

type IssueTokenResponse struct {
	Token      string    `json:"token"`
	ElectionID int64     `json:"election_id"`
	Used       bool      `json:"used"`
	CreatedAt  time.Time `json:"created_at"`
}

type CastVoteRequest struct {
	Token       string `json:"token"`
	PositionID  int64  `json:"position_id"`
	CandidateID int64  `json:"candidate_id"`
}

// Vote describes a stored ballot. The ciphertext never leaves the server.
type Vote struct {
	ID          int64     `json:"id"`
	ElectionID  int64     `json:"election_id"`
	PositionID  int64     `json:"position_id"`
	CandidateID int64     `json:"candidate_id"`
	Signed      bool      `json:"signed"`
	CreatedAt   time.Time `json:"created_at"`
}

type CastVoteResponse struct {
	Vote Vote `json:"vote"`
}

type Candidate struct {
	ID         int64  `json:"id"`
	PositionID int64  `json:"position_id"`
	ElectionID int64  `json:"election_id"`
	Name       string `json:"name"`
}

type CastQRRequest struct {
	Slug        string `json:"slug"`
	SignedToken string `json:"signed_token,omitempty"`
	Confirm     bool   `json:"confirm,omitempty"`
}

type CastQRResponse struct {
	AwaitingConfirmation bool      `json:"awaiting_confirmation"`
	Candidate            Candidate `json:"candidate"`
	Vote                 *Vote     `json:"vote,omitempty"`
}

// IssueQRRequest asks for a self-service token bound to the caller.
type IssueQRRequest struct {
	CandidateID int64 `json:"candidate_id"`
}

// IssueQRLinkRequest is the administrator variant with an explicit
// subject and an optional TTL in minutes.
type IssueQRLinkRequest struct {
	UserID      string `json:"user_id"`
	CandidateID int64  `json:"candidate_id"`
	TTLMinutes  int    `json:"ttl_minutes,omitempty"`
}

type IssueQRResponse struct {
	Token     string     `json:"token"`
	TokenHash string     `json:"token_hash"`
	Preview   string     `json:"preview"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type VerifyQRRequest struct {
	Token string `json:"token"`
}

type VerifyQRResponse struct {
	Valid         bool   `json:"valid"`
	Reason        string `json:"reason,omitempty"`
	Detail        string `json:"detail,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	CandidateID   int64  `json:"candidate_id,omitempty"`
	CandidateName string `json:"candidate_name,omitempty"`
}

type UpdateProfileRequest struct {
	UserID     string         `json:"user_id"`
	Role       string         `json:"role"`
	Status     string         `json:"status"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type UpdateProfileResponse struct{}
