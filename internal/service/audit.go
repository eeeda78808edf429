package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/target/eligibility-api/internal/core"
	"github.com/target/eligibility-api/internal/domain/model"
)

const auditWriteTimeout = 2 * time.Second

// AuditService records synchronous evaluations. Recording is best effort:
// failures are logged and never reach the caller.
type AuditService struct {
	repo   core.AuditRepository
	logger *slog.Logger
}

// NewAuditService returns nil when repo is nil; a nil *AuditService records nothing.
func NewAuditService(repo core.AuditRepository, logger *slog.Logger) *AuditService {
	if repo == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditService{repo: repo, logger: logger.With("component", "audit_service")}
}

// Record stores the request payload and the response for route.
// The write runs detached from ctx cancellation so a client disconnect does not drop it.
func (s *AuditService) Record(ctx context.Context, route string, payload, response any) {
	if s == nil {
		return
	}

	entry := &model.AuditEntry{Route: route}
	var err error
	if entry.Payload, err = json.Marshal(payload); err != nil {
		s.logger.WarnContext(ctx, "audit payload encode failed", "route", route, "error", err)
		return
	}
	if entry.Response, err = json.Marshal(response); err != nil {
		s.logger.WarnContext(ctx, "audit response encode failed", "route", route, "error", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := s.repo.Insert(writeCtx, entry); err != nil {
		s.logger.WarnContext(ctx, "audit write failed", "route", route, "error", err)
	}
}
