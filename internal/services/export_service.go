package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/quangtmn/visitreg/internal/access"
	"github.com/quangtmn/visitreg/internal/models"
)

// RecordCursor is a lazy cursor over exported records. Callers must Close it.
type RecordCursor interface {
	Next() bool
	Record() *models.Record
	Err() error
	Close()
}

// ExportStore defines the interface for streaming record access
type ExportStore interface {
	IterateRecords(ctx context.Context, scope access.Scope, rng models.TimeRange) (RecordCursor, error)
}

// ExportService hands out scoped record cursors. Serialization is the
// transport layer's job; the core never formats export output.
type ExportService struct {
	store  ExportStore
	logger *slog.Logger
}

// NewExportService creates a new ExportService
func NewExportService(store ExportStore, logger *slog.Logger) *ExportService {
	return &ExportService{store: store, logger: logger}
}

// Records returns a cursor over every live record the caller can see with an
// entry date inside the range. A fail-closed scope gets an empty cursor, not
// an error.
func (s *ExportService) Records(ctx context.Context, user *models.User, rng models.TimeRange) (RecordCursor, error) {
	scope := access.ScopeFor(user)
	if scope.IsNone() {
		return emptyCursor{}, nil
	}

	cursor, err := s.store.IterateRecords(ctx, scope, rng)
	if err != nil {
		if errors.Is(err, models.ErrStoreUnavailable) {
			return nil, err
		}
		s.logger.Error("export cursor failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return cursor, nil
}

type emptyCursor struct{}

func (emptyCursor) Next() bool             { return false }
func (emptyCursor) Record() *models.Record { return nil }
func (emptyCursor) Err() error             { return nil }
func (emptyCursor) Close()                 {}
