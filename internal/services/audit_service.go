package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/quangtmn/visitreg/internal/models"
)

// AuditStore defines the interface for audit log persistence
type AuditStore interface {
	Insert(ctx context.Context, entry *models.AuditLog) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditService appends the operator action trail. Audit writes are
// best-effort: a failed append is logged and never fails the operation it
// describes.
type AuditService struct {
	store  AuditStore
	logger *slog.Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(store AuditStore, logger *slog.Logger) *AuditService {
	return &AuditService{store: store, logger: logger}
}

// Record appends one audit entry for the given actor and action.
func (s *AuditService) Record(ctx context.Context, user *models.User, action string, success bool, metadata models.AuditMetadata) {
	entry := &models.AuditLog{
		Action:   action,
		Success:  success,
		Metadata: metadata,
	}
	if user != nil {
		entry.ActorID = &user.ID
		entry.ActorRole = string(user.Role)
	}

	// Detached from the request context so a cancelled request still leaves
	// its trail.
	if err := s.store.Insert(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("audit append failed",
			slog.String("action", action), slog.Any("error", err))
	}
}

// Sweep deletes audit entries older than the retention window and returns
// how many were dropped.
func (s *AuditService) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	deleted, err := s.store.DeleteOlderThan(ctx, time.Now().Add(-retention))
	if err != nil {
		s.logger.Error("audit sweep failed", slog.Any("error", err))
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("audit sweep complete", slog.Int64("deleted", deleted))
	}
	return deleted, nil
}
