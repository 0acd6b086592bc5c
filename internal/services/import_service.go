package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/quangtmn/visitreg/internal/access"
	"github.com/quangtmn/visitreg/internal/models"
	"github.com/quangtmn/visitreg/pkg/textnorm"
)

// RecordStore defines the interface for record mutation and lookup
type RecordStore interface {
	InsertBatch(ctx context.Context, recs []*models.Record, mode models.ImportMode) (int, map[string]bool, int64, error)
	Update(ctx context.Context, rec *models.Record) (int64, error)
	SoftDelete(ctx context.Context, id string) (int64, error)
	Purge(ctx context.Context, id string) (int64, error)
	UpdateVerificationNotes(ctx context.Context, notes map[string]string) (int, int64, error)
	GetByID(ctx context.Context, scope access.Scope, id string) (*models.Record, error)
}

// ImportService validates candidate records and hands the survivors to the
// store as one atomic batch. Rejections are per-row; a bad row never blocks
// its batch.
type ImportService struct {
	store    RecordStore
	regions  RegionStore
	validate *validator.Validate
	maxBatch int
	logger   *slog.Logger
}

// NewImportService creates a new ImportService
func NewImportService(store RecordStore, regions RegionStore, maxBatch int, logger *slog.Logger) *ImportService {
	return &ImportService{
		store:    store,
		regions:  regions,
		validate: validator.New(),
		maxBatch: maxBatch,
		logger:   logger,
	}
}

// InsertBatch validates, normalizes, and inserts the candidates. Replace
// mode is admin-only and soft-deletes everything live first; append mode
// rejects candidates whose visit is already recorded. The store version in
// the result reflects exactly one bump when anything changed.
func (s *ImportService) InsertBatch(ctx context.Context, user *models.User, candidates []models.CandidateRecord, mode models.ImportMode, sourceFile string) (*models.BatchResult, error) {
	scope := access.ScopeFor(user)
	if scope.IsNone() {
		return nil, models.ErrForbidden
	}
	if mode != models.ImportAppend && mode != models.ImportReplace {
		return nil, fmt.Errorf("%w: unknown import mode %q", models.ErrBadRequest, mode)
	}
	if mode == models.ImportReplace && user.Role != models.RoleAdmin {
		s.logger.Warn("replace import denied", slog.String("user_id", user.ID), slog.String("role", string(user.Role)))
		return nil, models.ErrForbidden
	}
	if len(candidates) > s.maxBatch {
		s.logger.Info("import batch over budget",
			slog.Int("records", len(candidates)), slog.Int("max", s.maxBatch))
		return nil, models.ErrQueryTooLarge
	}

	known, err := s.regions.KnownCodes(ctx)
	if err != nil {
		return nil, s.mapErr("failed to load regions", err)
	}

	now := time.Now()
	rejected := make([]models.RecordRejection, 0)
	recs := make([]*models.Record, 0, len(candidates))
	recIdx := make([]int, 0, len(candidates)) // rec position -> candidate index
	seenVisit := make(map[string]bool)

	for i := range candidates {
		cand := candidates[i]
		if reason := s.checkCandidate(&cand, known, scope, now); reason != "" {
			rejected = append(rejected, models.RecordRejection{Index: i, Record: cand, Reason: reason})
			continue
		}

		passport := textnorm.Passport(cand.PassportNumber)
		rec := candidateToRecord(passport, &cand, sourceFile)

		if seenVisit[rec.VisitKey()] {
			rejected = append(rejected, models.RecordRejection{Index: i, Record: cand,
				Reason: "duplicate of an earlier row in this batch"})
			continue
		}
		seenVisit[rec.VisitKey()] = true

		recs = append(recs, rec)
		recIdx = append(recIdx, i)
	}

	accepted, duplicates, version, err := s.store.InsertBatch(ctx, recs, mode)
	if err != nil {
		return nil, s.mapErr("insert batch failed", err)
	}

	if mode == models.ImportAppend {
		for pos, rec := range recs {
			if duplicates[rec.VisitKey()] {
				i := recIdx[pos]
				rejected = append(rejected, models.RecordRejection{Index: i, Record: candidates[i],
					Reason: "visit already recorded for this passport and entry date"})
			}
		}
		sort.Slice(rejected, func(a, b int) bool { return rejected[a].Index < rejected[b].Index })
	}

	s.logger.Info("import batch applied",
		slog.String("mode", string(mode)),
		slog.Int("accepted", accepted),
		slog.Int("rejected", len(rejected)),
		slog.Int64("store_version", version))

	return &models.BatchResult{Accepted: accepted, Rejected: rejected, Version: version}, nil
}

// checkCandidate runs structural validation, the data-model invariants, and
// the caller's scope check. Returns a rejection reason or "".
func (s *ImportService) checkCandidate(cand *models.CandidateRecord, known map[string]bool, scope access.Scope, now time.Time) string {
	if err := s.validate.Struct(cand); err != nil {
		return validationReason(err)
	}
	passport := textnorm.Passport(cand.PassportNumber)
	if reason := models.CheckInvariants(passport, cand, known, now); reason != "" {
		return reason
	}
	if !scope.Matches(cand.RegionCode) {
		return fmt.Sprintf("region %q is outside the caller's scope", cand.RegionCode)
	}
	return ""
}

// candidateToRecord builds the stored form of an accepted candidate.
// Unrecognized and empty purposes collapse to "other".
func candidateToRecord(passportNorm string, cand *models.CandidateRecord, sourceFile string) *models.Record {
	purpose := models.Purpose(cand.Purpose)
	if !models.ValidPurpose(purpose) {
		purpose = models.PurposeOther
	}
	return &models.Record{
		PassportNumber: passportNorm,
		FullName:       strings.TrimSpace(cand.FullName),
		NameNormalized: textnorm.Name(cand.FullName),
		Nationality:    strings.TrimSpace(cand.Nationality),
		DateOfBirth:    cand.DateOfBirth,
		EntryDate:      cand.EntryDate,
		ExitDate:       cand.ExitDate,
		Purpose:        purpose,
		RegionCode:     cand.RegionCode,
		Notes:          cand.Notes,
		SourceFile:     sourceFile,
	}
}

// UpdateRecord rewrites the editable fields of one record the caller can
// see. Returns the updated record and the new store version.
func (s *ImportService) UpdateRecord(ctx context.Context, user *models.User, id string, cand models.CandidateRecord) (*models.Record, int64, error) {
	scope := access.ScopeFor(user)
	if scope.IsNone() {
		return nil, 0, models.ErrForbidden
	}

	existing, err := s.store.GetByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, 0, models.ErrNotFound
		}
		return nil, 0, s.mapErr("failed to load record for update", err)
	}

	known, err := s.regions.KnownCodes(ctx)
	if err != nil {
		return nil, 0, s.mapErr("failed to load regions", err)
	}
	if reason := s.checkCandidate(&cand, known, scope, time.Now()); reason != "" {
		return nil, 0, fmt.Errorf("%w: %s", models.ErrValidation, reason)
	}

	rec := candidateToRecord(textnorm.Passport(cand.PassportNumber), &cand, existing.SourceFile)
	rec.ID = existing.ID
	// The visit identity is immutable; edits keep the original passport.
	if rec.PassportNumber != existing.PassportNumber {
		return nil, 0, fmt.Errorf("%w: passport number cannot be changed", models.ErrValidation)
	}

	version, err := s.store.Update(ctx, rec)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrConflict) {
			return nil, 0, err
		}
		return nil, 0, s.mapErr("update failed", err)
	}

	s.logger.Info("record updated", slog.String("record_id", id), slog.Int64("store_version", version))
	return rec, version, nil
}

// DeleteRecord soft-deletes one record the caller can see.
func (s *ImportService) DeleteRecord(ctx context.Context, user *models.User, id string) (int64, error) {
	scope := access.ScopeFor(user)
	if scope.IsNone() {
		return 0, models.ErrForbidden
	}

	if _, err := s.store.GetByID(ctx, scope, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return 0, models.ErrNotFound
		}
		return 0, s.mapErr("failed to load record for delete", err)
	}

	version, err := s.store.SoftDelete(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return 0, models.ErrNotFound
		}
		return 0, s.mapErr("delete failed", err)
	}

	s.logger.Info("record deleted", slog.String("record_id", id), slog.Int64("store_version", version))
	return version, nil
}

// PurgeRecord physically removes a record, including soft-deleted ones.
// Admin only.
func (s *ImportService) PurgeRecord(ctx context.Context, user *models.User, id string) (int64, error) {
	if user == nil || user.Role != models.RoleAdmin {
		return 0, models.ErrForbidden
	}

	version, err := s.store.Purge(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return 0, models.ErrNotFound
		}
		return 0, s.mapErr("purge failed", err)
	}

	s.logger.Info("record purged", slog.String("record_id", id), slog.Int64("store_version", version))
	return version, nil
}

// ApplyVerificationNotes bulk-updates the notes of every live visit for the
// given passports, keyed raw passport -> note. Admin only. Returns how many
// records changed and the store version.
func (s *ImportService) ApplyVerificationNotes(ctx context.Context, user *models.User, notes map[string]string) (int, int64, error) {
	if user == nil || user.Role != models.RoleAdmin {
		return 0, 0, models.ErrForbidden
	}
	if len(notes) > s.maxBatch {
		return 0, 0, models.ErrQueryTooLarge
	}

	normalized := make(map[string]string, len(notes))
	for passport, note := range notes {
		if norm := textnorm.Passport(passport); norm != "" {
			normalized[norm] = note
		}
	}

	updated, version, err := s.store.UpdateVerificationNotes(ctx, normalized)
	if err != nil {
		return 0, 0, s.mapErr("verification notes update failed", err)
	}

	s.logger.Info("verification notes applied",
		slog.Int("passports", len(normalized)),
		slog.Int("updated", updated),
		slog.Int64("store_version", version))
	return updated, version, nil
}

func (s *ImportService) mapErr(msg string, err error) error {
	if errors.Is(err, models.ErrStoreUnavailable) {
		return err
	}
	s.logger.Error(msg, slog.Any("error", err))
	return models.ErrInternalServer
}

// validationReason renders the first structural validation failure as a
// rejection reason.
func validationReason(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("field %s failed %s validation", strings.ToLower(fe.Field()), fe.Tag())
	}
	return "record failed validation"
}
