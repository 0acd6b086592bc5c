package handlers

import (
	"fmt"
	"time"

	"github.com/quangtmn/visitreg/internal/models"
)

const dateLayout = "2006-01-02"

// CandidateRequest is the wire form of one record row. Dates travel as
// YYYY-MM-DD strings.
type CandidateRequest struct {
	PassportNumber string `json:"passport_number" validate:"required"`
	FullName       string `json:"full_name"`
	Nationality    string `json:"nationality"`
	DateOfBirth    string `json:"date_of_birth"`
	EntryDate      string `json:"entry_date" validate:"required,datetime=2006-01-02"`
	ExitDate       string `json:"exit_date" validate:"omitempty,datetime=2006-01-02"`
	Purpose        string `json:"purpose"`
	RegionCode     string `json:"region_code" validate:"required"`
	Notes          string `json:"notes"`
}

// ToCandidate converts the wire form into the core candidate type.
func (r *CandidateRequest) ToCandidate() (models.CandidateRecord, error) {
	cand := models.CandidateRecord{
		PassportNumber: r.PassportNumber,
		FullName:       r.FullName,
		Nationality:    r.Nationality,
		Purpose:        r.Purpose,
		RegionCode:     r.RegionCode,
		Notes:          r.Notes,
	}

	entry, err := parseDate(r.EntryDate)
	if err != nil {
		return cand, fmt.Errorf("entry_date: %w", err)
	}
	cand.EntryDate = entry

	if cand.ExitDate, err = parseOptionalDate(r.ExitDate); err != nil {
		return cand, fmt.Errorf("exit_date: %w", err)
	}
	if cand.DateOfBirth, err = parseOptionalDate(r.DateOfBirth); err != nil {
		return cand, fmt.Errorf("date_of_birth: %w", err)
	}
	return cand, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseRange reads the from/to pair shared by report and export queries.
func parseRange(from, to string) (models.TimeRange, error) {
	var rng models.TimeRange
	if from != "" {
		t, err := parseDate(from)
		if err != nil {
			return rng, fmt.Errorf("from: %w", err)
		}
		rng.From = t
	}
	if to != "" {
		t, err := parseDate(to)
		if err != nil {
			return rng, fmt.Errorf("to: %w", err)
		}
		rng.To = t
	}
	return rng, nil
}

// RecordResponse represents a record in the HTTP response
type RecordResponse struct {
	ID             string `json:"id"`
	PassportNumber string `json:"passport_number"`
	FullName       string `json:"full_name"`
	Nationality    string `json:"nationality,omitempty"`
	DateOfBirth    string `json:"date_of_birth,omitempty"`
	EntryDate      string `json:"entry_date"`
	ExitDate       string `json:"exit_date,omitempty"`
	Purpose        string `json:"purpose"`
	RegionCode     string `json:"region_code"`
	Notes          string `json:"notes,omitempty"`
	SourceFile     string `json:"source_file,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// recordModelToResponse converts a record model to a response DTO
func recordModelToResponse(rec *models.Record) *RecordResponse {
	resp := &RecordResponse{
		ID:             rec.ID,
		PassportNumber: rec.PassportNumber,
		FullName:       rec.FullName,
		Nationality:    rec.Nationality,
		EntryDate:      rec.EntryDate.Format(dateLayout),
		Purpose:        string(rec.Purpose),
		RegionCode:     rec.RegionCode,
		Notes:          rec.Notes,
		SourceFile:     rec.SourceFile,
		CreatedAt:      rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      rec.UpdatedAt.Format(time.RFC3339),
	}
	if rec.DateOfBirth != nil {
		resp.DateOfBirth = rec.DateOfBirth.Format(dateLayout)
	}
	if rec.ExitDate != nil {
		resp.ExitDate = rec.ExitDate.Format(dateLayout)
	}
	return resp
}

func recordsToResponses(recs []*models.Record) []*RecordResponse {
	out := make([]*RecordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recordModelToResponse(rec))
	}
	return out
}
