package models

import "time"

// Dimension selects how a statistics report groups records.
type Dimension string

const (
	DimMonth       Dimension = "month"   // by month of entry date
	DimQuarter     Dimension = "quarter" // by quarter of entry date
	DimYear        Dimension = "year"    // by year of entry date
	DimRegion      Dimension = "region"
	DimPurpose     Dimension = "purpose"
	DimNationality Dimension = "nationality"
)

// ValidDimension reports whether d is a supported grouping dimension.
func ValidDimension(d Dimension) bool {
	switch d {
	case DimMonth, DimQuarter, DimYear, DimRegion, DimPurpose, DimNationality:
		return true
	}
	return false
}

// TimeRange bounds a report by entry date. Zero values leave the bound open.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// ReportGroup is one group of a statistics report.
type ReportGroup struct {
	Key               string `json:"key"`
	Count             int64  `json:"count"`
	CurrentlyResiding int64  `json:"currently_residing"`
}

// StatisticsReport is a grouped count report over the caller's visible
// scope. Every requested group is present even when zero-valued, so callers
// can render fixed chart axes.
type StatisticsReport struct {
	Dimension Dimension     `json:"dimension"`
	Range     TimeRange     `json:"range"`
	Groups    []ReportGroup `json:"groups"`
	Total     int64         `json:"total"`
	Version   int64         `json:"store_version"`
}

// SummaryReport carries the headline totals shown on the statistics page.
type SummaryReport struct {
	TotalRecords       int64            `json:"total_records"`
	TotalNationalities int64            `json:"total_nationalities"`
	CurrentlyResiding  int64            `json:"currently_residing"`
	ByPurpose          map[string]int64 `json:"by_purpose"`
	Version            int64            `json:"store_version"`
}
