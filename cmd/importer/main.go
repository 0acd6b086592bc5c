package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/quangtmn/visitreg/internal/config"
	"github.com/quangtmn/visitreg/internal/database"
	"github.com/quangtmn/visitreg/internal/models"
	"github.com/quangtmn/visitreg/internal/repositories"
	"github.com/quangtmn/visitreg/internal/services"
)

// importRow is one NDJSON line on stdin. Dates are YYYY-MM-DD.
type importRow struct {
	PassportNumber string `json:"passport_number"`
	FullName       string `json:"full_name"`
	Nationality    string `json:"nationality"`
	DateOfBirth    string `json:"date_of_birth"`
	EntryDate      string `json:"entry_date"`
	ExitDate       string `json:"exit_date"`
	Purpose        string `json:"purpose"`
	RegionCode     string `json:"region_code"`
	Notes          string `json:"notes"`
}

// Reads NDJSON records from stdin and imports them as one batch. Runs with
// no cache; the import is a single write and nothing is re-read.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	var (
		mode       = flag.String("mode", "append", "import mode: append or replace")
		sourceFile = flag.String("source", "", "source file name recorded on each row")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	recordRepo := repositories.NewRecordRepository(db)
	regionRepo := repositories.NewRegionRepository(db)
	importService := services.NewImportService(recordRepo, regionRepo, cfg.Query.MaxBatchSize, logger)

	candidates, err := readCandidates(os.Stdin)
	if err != nil {
		logger.Error("failed to read input", slog.Any("error", err))
		os.Exit(1)
	}
	if len(candidates) == 0 {
		logger.Info("nothing to import")
		return
	}

	// The importer runs as the operations admin.
	admin := &models.User{ID: "importer", Username: "importer", Role: models.RoleAdmin}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := importService.InsertBatch(ctx, admin, candidates, models.ImportMode(*mode), *sourceFile)
	if err != nil {
		logger.Error("import failed", slog.Any("error", err))
		os.Exit(1)
	}

	for _, rej := range result.Rejected {
		logger.Warn("row rejected",
			slog.Int("index", rej.Index), slog.String("reason", rej.Reason))
	}
	logger.Info("import complete",
		slog.Int("accepted", result.Accepted),
		slog.Int("rejected", len(result.Rejected)),
		slog.Int64("store_version", result.Version))

	if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
		logger.Error("failed to write result", slog.Any("error", err))
		os.Exit(1)
	}
}

func readCandidates(f *os.File) ([]models.CandidateRecord, error) {
	var candidates []models.CandidateRecord

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row importRow
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, err
		}
		cand, err := rowToCandidate(row)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, cand)
	}
	return candidates, scanner.Err()
}

func rowToCandidate(row importRow) (models.CandidateRecord, error) {
	cand := models.CandidateRecord{
		PassportNumber: row.PassportNumber,
		FullName:       row.FullName,
		Nationality:    row.Nationality,
		Purpose:        row.Purpose,
		RegionCode:     row.RegionCode,
		Notes:          row.Notes,
	}

	var err error
	if row.EntryDate != "" {
		if cand.EntryDate, err = time.Parse("2006-01-02", row.EntryDate); err != nil {
			return cand, err
		}
	}
	if cand.ExitDate, err = optionalDate(row.ExitDate); err != nil {
		return cand, err
	}
	if cand.DateOfBirth, err = optionalDate(row.DateOfBirth); err != nil {
		return cand, err
	}
	return cand, nil
}

func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
