package service

import (
	"context"
	"fmt"

	"github.com/and161185/campus-vote/internal/errs"
	"github.com/and161185/campus-vote/internal/metrics"
	"github.com/and161185/campus-vote/internal/model"
	"github.com/and161185/campus-vote/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// ProfileService lets administrators change the attributes policy reads.
type ProfileService interface {
	Update(ctx context.Context, adminID uuid.UUID, p *model.Profile) error
}

type ProfileServiceImpl struct {
	profiles repository.ProfileRepository
	policy   Policy
	audit    auditor
}

// NewProfileService constructs ProfileService.
func NewProfileService(profiles repository.ProfileRepository, policy Policy, audit repository.AuditRepository, log *zap.Logger) *ProfileServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileServiceImpl{profiles: profiles, policy: policy,
		audit: auditor{repo: audit, log: log, m: metrics.Nop{}}}
}

// Update persists the profile and invalidates cached decisions for it.
func (s *ProfileServiceImpl) Update(ctx context.Context, adminID uuid.UUID, p *model.Profile) error {
	if p == nil || p.UserID == uuid.Nil {
		return fmt.Errorf("%w: profile user is required", errs.ErrValidation)
	}
	switch p.Role {
	case model.RoleStudent, model.RoleStaff, model.RoleAdmin:
	default:
		return fmt.Errorf("%w: unknown role %q", errs.ErrValidation, p.Role)
	}
	switch p.Status {
	case model.StatusActive, model.StatusSuspended, model.StatusArchived:
	default:
		return fmt.Errorf("%w: unknown status %q", errs.ErrValidation, p.Status)
	}

	admin, err := resolvePrincipal(ctx, s.profiles, adminID)
	if err != nil {
		return err
	}
	if !admin.IsAdmin() {
		return errs.ErrForbidden
	}
	if err := s.profiles.Upsert(ctx, p); err != nil {
		return err
	}
	s.policy.Invalidate(ctx, p.UserID.String())
	s.audit.record(ctx, &adminID, AuditProfileUpdate, map[string]any{
		"user_id": p.UserID.String(),
		"role":    string(p.Role),
		"status":  string(p.Status),
	})
	return nil
}
