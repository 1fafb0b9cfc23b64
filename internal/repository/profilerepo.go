// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/campus-vote/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ProfileRepository provides access to principal profiles owned by the identity subsystem.
type ProfileRepository interface {
	// Get loads a profile by principal ID.
	Get(ctx context.Context, userID uuid.UUID) (*model.Profile, error)
	// Upsert creates or replaces a profile.
	Upsert(ctx context.Context, p *model.Profile) error
}
