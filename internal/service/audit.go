package service

import (
	"context"

	"github.com/and161185/campus-vote/internal/metrics"
	"github.com/and161185/campus-vote/internal/model"
	"github.com/and161185/campus-vote/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Audit actions.
const (
	AuditVoteCastSuccess = "vote.cast_success"
	AuditVoteCastFailure = "vote.cast_failure"
	AuditQRCastSuccess   = "qr.cast_success"
	AuditQRCastFailure   = "qr.cast_failure"
	AuditQRScan          = "qr.scan"
	AuditQRIssue         = "qr.issue"
	AuditQRRedeem        = "qr.redeem"
	AuditTokenIssue      = "token.issue"
	AuditProfileUpdate   = "profile.update"
)

// auditor writes audit events fire-and-forget.
type auditor struct {
	repo repository.AuditRepository
	log  *zap.Logger
	m    metrics.Sink
}

func (a auditor) record(ctx context.Context, userID *uuid.UUID, action string, meta map[string]any) {
	if a.repo == nil {
		return
	}
	e := model.AuditEvent{UserID: userID, Action: action, IP: ClientIP(ctx), Meta: meta}
	if err := a.repo.Append(ctx, e); err != nil {
		a.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
		a.m.Inc(metrics.AuditWriteFailure)
	}
}
