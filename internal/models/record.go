package models

import (
	"fmt"
	"time"
)

// Purpose of entry. Closed set; anything unrecognized maps to PurposeOther
// at validation time.
type Purpose string

const (
	PurposeLabor     Purpose = "labor"
	PurposeMarriage  Purpose = "marriage"
	PurposeStudy     Purpose = "study"
	PurposeVisit     Purpose = "visit"
	PurposeWatchlist Purpose = "watchlist"
	PurposeOther     Purpose = "other"
)

// Purposes lists every valid purpose, in report display order.
var Purposes = []Purpose{
	PurposeLabor,
	PurposeMarriage,
	PurposeStudy,
	PurposeVisit,
	PurposeWatchlist,
	PurposeOther,
}

// ValidPurpose reports whether p is a member of the closed purpose set.
func ValidPurpose(p Purpose) bool {
	for _, v := range Purposes {
		if p == v {
			return true
		}
	}
	return false
}

// Record is one tracked visit of a foreign national. PassportNumber is the
// primary lookup key; it is not globally unique across visits, but
// (PassportNumber, EntryDate) uniquely identifies a live visit.
type Record struct {
	ID             string
	PassportNumber string // normalized: upper, separators stripped
	FullName       string
	NameNormalized string // diacritics folded, lowered, spaces removed
	Nationality    string
	DateOfBirth    *time.Time
	EntryDate      time.Time
	ExitDate       *time.Time
	Purpose        Purpose
	RegionCode     string
	Notes          string
	SourceFile     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// VisitKey identifies a visit for duplicate detection.
func (r *Record) VisitKey() string {
	return r.PassportNumber + "|" + r.EntryDate.Format("2006-01-02")
}

// CandidateRecord is an already-parsed row handed to the ingestion path by
// the import collaborator. Fields are structurally valid (typed and
// format-checked); the invariants below are the core's responsibility.
type CandidateRecord struct {
	PassportNumber string     `json:"passport_number" validate:"required"`
	FullName       string     `json:"full_name"`
	Nationality    string     `json:"nationality"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
	EntryDate      time.Time  `json:"entry_date"`
	ExitDate       *time.Time `json:"exit_date"`
	Purpose        string     `json:"purpose"`
	RegionCode     string     `json:"region_code" validate:"required"`
	Notes          string     `json:"notes"`
}

// RecordRejection reports why a single candidate was not accepted. The rest
// of the batch is unaffected.
type RecordRejection struct {
	Index  int             `json:"index"`
	Record CandidateRecord `json:"record"`
	Reason string          `json:"reason"`
}

// BatchResult is the per-record outcome of an insert batch.
type BatchResult struct {
	Accepted int               `json:"accepted"`
	Rejected []RecordRejection `json:"rejected,omitempty"`
	Version  int64             `json:"store_version"`
}

// ImportMode selects how an insert batch treats existing data.
type ImportMode string

const (
	// ImportAppend adds to the existing store; duplicate visits are rejected.
	ImportAppend ImportMode = "append"
	// ImportReplace soft-deletes all live records before inserting the batch.
	ImportReplace ImportMode = "replace"
)

// CheckInvariants verifies the data-model invariants for a candidate whose
// passport and name have already been normalized. It returns a reason string
// suitable for a RecordRejection, or "" when the candidate is acceptable.
// knownRegions is the set of valid administrative unit codes.
func CheckInvariants(passportNorm string, c *CandidateRecord, knownRegions map[string]bool, now time.Time) string {
	if passportNorm == "" {
		return "passport number is empty"
	}
	if len(passportNorm) < 5 {
		return "passport number too short (minimum 5 characters)"
	}
	for _, r := range passportNorm {
		alnum := (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !alnum {
			return "passport number must be alphanumeric"
		}
	}
	if c.EntryDate.IsZero() {
		return "entry date is required"
	}
	today := now.Truncate(24 * time.Hour).Add(24*time.Hour - time.Nanosecond)
	if c.EntryDate.After(today) {
		return "entry date cannot be in the future"
	}
	if c.ExitDate != nil {
		if c.ExitDate.Before(c.EntryDate) {
			return fmt.Sprintf("exit date (%s) before entry date (%s)",
				c.ExitDate.Format("2006-01-02"), c.EntryDate.Format("2006-01-02"))
		}
		if c.ExitDate.After(today) {
			return "exit date cannot be in the future"
		}
	}
	if c.DateOfBirth != nil && c.DateOfBirth.After(today) {
		return "date of birth cannot be in the future"
	}
	if c.RegionCode == "" {
		return "region code is required"
	}
	if !knownRegions[c.RegionCode] {
		return fmt.Sprintf("unknown region code %q", c.RegionCode)
	}
	if c.Purpose != "" && !ValidPurpose(Purpose(c.Purpose)) {
		return fmt.Sprintf("unknown purpose %q", c.Purpose)
	}
	return ""
}

// Region is a known administrative unit (commune/district).
type Region struct {
	Code string
	Name string
}
