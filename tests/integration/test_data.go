package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/quangtmn/visitreg/internal/models"
	"github.com/quangtmn/visitreg/internal/repositories"
	"github.com/quangtmn/visitreg/pkg/textnorm"
)

// Region codes seeded by the migrations.
const (
	RegionBaoYen    = "XA_BAO_YEN"
	RegionDongTrung = "XA_DONG_TRUNG"
	RegionNaChieng  = "XA_NA_CHIENG"
)

// Date parses a YYYY-MM-DD string; test fixtures fail loudly on typos.
func Date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(fmt.Sprintf("bad test date %q: %v", s, err))
	}
	return t
}

// DatePtr is Date for nullable columns
func DatePtr(s string) *time.Time {
	t := Date(s)
	return &t
}

// Visit builds a record the way the import path would: passport and name
// already normalized.
func Visit(passport, fullName, regionCode, entryDate string) *models.Record {
	return &models.Record{
		PassportNumber: textnorm.Passport(passport),
		FullName:       fullName,
		NameNormalized: textnorm.Name(fullName),
		Nationality:    "Lao",
		EntryDate:      Date(entryDate),
		Purpose:        models.PurposeVisit,
		RegionCode:     regionCode,
	}
}

// SeedVisits inserts records through the repository in append mode and
// returns the resulting store version.
func SeedVisits(ctx context.Context, repo *repositories.RecordRepository, recs ...*models.Record) (int64, error) {
	accepted, _, version, err := repo.InsertBatch(ctx, recs, models.ImportAppend)
	if err != nil {
		return 0, err
	}
	if accepted != len(recs) {
		return 0, fmt.Errorf("seed: expected %d inserts, got %d", len(recs), accepted)
	}
	return version, nil
}

// Candidate builds an import candidate with raw, un-normalized input.
func Candidate(passport, fullName, regionCode, entryDate string) models.CandidateRecord {
	return models.CandidateRecord{
		PassportNumber: passport,
		FullName:       fullName,
		Nationality:    "Lao",
		EntryDate:      Date(entryDate),
		Purpose:        string(models.PurposeVisit),
		RegionCode:     regionCode,
	}
}
