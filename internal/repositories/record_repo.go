package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quangtmn/visitreg/internal/access"
	"github.com/quangtmn/visitreg/internal/database"
	"github.com/quangtmn/visitreg/internal/models"
)

// RecordRepository owns all SQL against the records table and the store
// version counter. Mutations serialize on the store_version row lock; the
// version bump commits atomically with the mutation, so readers see either
// the pre-batch or post-batch state, never an intermediate one.
type RecordRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewRecordRepository(db *database.DB) *RecordRepository {
	return &RecordRepository{db: db, pool: db.Pool}
}

const recordColumns = `
	id, passport_number, full_name, name_normalized, nationality,
	date_of_birth, entry_date, exit_date, purpose, region_code,
	notes, source_file, created_at, updated_at, deleted_at
`

// rowScanner interface for scanning record rows (single row or rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecordRow(scanner rowScanner) (*models.Record, error) {
	var rec models.Record
	var purpose string

	err := scanner.Scan(
		&rec.ID, &rec.PassportNumber, &rec.FullName, &rec.NameNormalized,
		&rec.Nationality, &rec.DateOfBirth, &rec.EntryDate, &rec.ExitDate,
		&purpose, &rec.RegionCode, &rec.Notes, &rec.SourceFile,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.DeletedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	rec.Purpose = models.Purpose(purpose)
	return &rec, nil
}

func scanRecordRows(rows pgx.Rows) ([]*models.Record, error) {
	defer rows.Close()

	records := make([]*models.Record, 0)
	for rows.Next() {
		rec, err := scanRecordRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}
	return records, nil
}

// lockVersion serializes writers. Every mutating transaction takes this row
// lock first, so writes are single-writer even across processes.
func lockVersion(ctx context.Context, tx pgx.Tx) error {
	var v int64
	if err := tx.QueryRow(ctx, `SELECT version FROM store_version WHERE id = 1 FOR UPDATE`).Scan(&v); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

func bumpVersion(ctx context.Context, tx pgx.Tx) (int64, error) {
	var v int64
	err := tx.QueryRow(ctx, `UPDATE store_version SET version = version + 1 WHERE id = 1 RETURNING version`).Scan(&v)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return v, nil
}

// CurrentVersion returns the monotonic store version.
func (r *RecordRepository) CurrentVersion(ctx context.Context) (int64, error) {
	var v int64
	err := r.pool.QueryRow(ctx, `SELECT version FROM store_version WHERE id = 1`).Scan(&v)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return v, nil
}

// InsertBatch inserts the given records in one transaction and bumps the
// store version exactly once. In append mode, candidates whose
// (passport_number, entry_date) collides with a live stored visit are
// skipped and reported back by visit key; the rest of the batch proceeds.
// Replace mode soft-deletes every live record first. An append batch where
// nothing is insertable leaves the version untouched.
func (r *RecordRepository) InsertBatch(ctx context.Context, recs []*models.Record, mode models.ImportMode) (accepted int, duplicates map[string]bool, version int64, err error) {
	duplicates = make(map[string]bool)

	err = r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := lockVersion(ctx, tx); err != nil {
			return err
		}

		if mode == models.ImportReplace {
			if _, err := tx.Exec(ctx, `UPDATE records SET deleted_at = now(), updated_at = now() WHERE deleted_at IS NULL`); err != nil {
				return database.MapPostgresError(err)
			}
		} else if len(recs) > 0 {
			passports := make([]string, 0, len(recs))
			for _, rec := range recs {
				passports = append(passports, rec.PassportNumber)
			}
			rows, err := tx.Query(ctx, `
				SELECT passport_number, entry_date FROM records
				WHERE deleted_at IS NULL AND passport_number = ANY($1)
			`, passports)
			if err != nil {
				return database.MapPostgresError(err)
			}
			for rows.Next() {
				var passport string
				var entry time.Time
				if err := rows.Scan(&passport, &entry); err != nil {
					rows.Close()
					return database.MapPostgresError(err)
				}
				duplicates[passport+"|"+entry.Format("2006-01-02")] = true
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return database.MapPostgresError(err)
			}
		}

		batch := &pgx.Batch{}
		now := time.Now()
		for _, rec := range recs {
			if mode == models.ImportAppend && duplicates[rec.VisitKey()] {
				continue
			}
			if rec.ID == "" {
				rec.ID = uuid.New().String()
			}
			rec.CreatedAt = now
			rec.UpdatedAt = now
			batch.Queue(`
				INSERT INTO records (
					id, passport_number, full_name, name_normalized, nationality,
					date_of_birth, entry_date, exit_date, purpose, region_code,
					notes, source_file, created_at, updated_at
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
			`,
				rec.ID, rec.PassportNumber, rec.FullName, rec.NameNormalized,
				rec.Nationality, rec.DateOfBirth, rec.EntryDate, rec.ExitDate,
				string(rec.Purpose), rec.RegionCode, rec.Notes, rec.SourceFile,
				rec.CreatedAt, rec.UpdatedAt,
			)
			accepted++
		}

		if batch.Len() > 0 {
			br := tx.SendBatch(ctx, batch)
			for i := 0; i < batch.Len(); i++ {
				if _, err := br.Exec(); err != nil {
					br.Close()
					return database.MapPostgresError(err)
				}
			}
			if err := br.Close(); err != nil {
				return database.MapPostgresError(err)
			}
		}

		// Append mode with nothing to insert mutated nothing: no bump.
		if mode == models.ImportAppend && accepted == 0 {
			v, err := currentVersionTx(ctx, tx)
			if err != nil {
				return err
			}
			version = v
			return nil
		}

		v, err := bumpVersion(ctx, tx)
		if err != nil {
			return err
		}
		version = v
		return nil
	})
	if err != nil {
		return 0, nil, 0, err
	}
	return accepted, duplicates, version, nil
}

func currentVersionTx(ctx context.Context, tx pgx.Tx) (int64, error) {
	var v int64
	if err := tx.QueryRow(ctx, `SELECT version FROM store_version WHERE id = 1`).Scan(&v); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return v, nil
}

// Update rewrites the editable fields of a live record and bumps the store
// version.
func (r *RecordRepository) Update(ctx context.Context, rec *models.Record) (int64, error) {
	var version int64
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := lockVersion(ctx, tx); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE records SET
				full_name = $2, name_normalized = $3, nationality = $4,
				date_of_birth = $5, entry_date = $6, exit_date = $7,
				purpose = $8, region_code = $9, notes = $10, updated_at = now()
			WHERE id = $1 AND deleted_at IS NULL
		`,
			rec.ID, rec.FullName, rec.NameNormalized, rec.Nationality,
			rec.DateOfBirth, rec.EntryDate, rec.ExitDate, string(rec.Purpose),
			rec.RegionCode, rec.Notes,
		)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		v, err := bumpVersion(ctx, tx)
		if err != nil {
			return err
		}
		version = v
		return nil
	})
	return version, err
}

// SoftDelete marks a record deleted, preserving it for audit history.
func (r *RecordRepository) SoftDelete(ctx context.Context, id string) (int64, error) {
	return r.mutateOne(ctx, `UPDATE records SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
}

// Purge physically removes a record. Admin action only; the route layer
// enforces the role.
func (r *RecordRepository) Purge(ctx context.Context, id string) (int64, error) {
	return r.mutateOne(ctx, `DELETE FROM records WHERE id = $1`, id)
}

func (r *RecordRepository) mutateOne(ctx context.Context, sql, id string) (int64, error) {
	var version int64
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := lockVersion(ctx, tx); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, sql, id)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		v, err := bumpVersion(ctx, tx)
		if err != nil {
			return err
		}
		version = v
		return nil
	})
	return version, err
}

// UpdateVerificationNotes bulk-updates the notes of every live visit for
// the given normalized passport numbers, keyed passport -> note. Bumps the
// version once when anything changed.
func (r *RecordRepository) UpdateVerificationNotes(ctx context.Context, notes map[string]string) (int, int64, error) {
	var updated int
	var version int64
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := lockVersion(ctx, tx); err != nil {
			return err
		}
		for passport, note := range notes {
			tag, err := tx.Exec(ctx, `
				UPDATE records SET notes = $2, updated_at = now()
				WHERE passport_number = $1 AND deleted_at IS NULL
			`, passport, note)
			if err != nil {
				return database.MapPostgresError(err)
			}
			updated += int(tag.RowsAffected())
		}
		if updated == 0 {
			v, err := currentVersionTx(ctx, tx)
			if err != nil {
				return err
			}
			version = v
			return nil
		}
		v, err := bumpVersion(ctx, tx)
		if err != nil {
			return err
		}
		version = v
		return nil
	})
	return updated, version, err
}

// GetByID fetches one live record within the caller's scope.
func (r *RecordRepository) GetByID(ctx context.Context, scope access.Scope, id string) (*models.Record, error) {
	scopeSQL, scopeArgs := scope.SQL(2)
	args := append([]any{id}, scopeArgs...)

	query := fmt.Sprintf(`
		SELECT %s FROM records
		WHERE id = $1 AND deleted_at IS NULL AND %s
	`, recordColumns, scopeSQL)

	return scanRecordRow(r.pool.QueryRow(ctx, query, args...))
}

// FindByPassports resolves a whole set of normalized passport keys in one
// indexed query, most recent entry first.
func (r *RecordRepository) FindByPassports(ctx context.Context, scope access.Scope, passports []string) ([]*models.Record, error) {
	if len(passports) == 0 {
		return []*models.Record{}, nil
	}
	scopeSQL, scopeArgs := scope.SQL(2)
	args := append([]any{passports}, scopeArgs...)

	query := fmt.Sprintf(`
		SELECT %s FROM records
		WHERE deleted_at IS NULL AND passport_number = ANY($1) AND %s
		ORDER BY entry_date DESC, updated_at DESC
	`, recordColumns, scopeSQL)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return scanRecordRows(rows)
}

// FindByNamePatterns resolves normalized-name substring patterns
// (%needle%) in one set query. Callers redistribute rows to their keys.
func (r *RecordRepository) FindByNamePatterns(ctx context.Context, scope access.Scope, patterns []string) ([]*models.Record, error) {
	if len(patterns) == 0 {
		return []*models.Record{}, nil
	}
	scopeSQL, scopeArgs := scope.SQL(2)
	args := append([]any{patterns}, scopeArgs...)

	query := fmt.Sprintf(`
		SELECT %s FROM records
		WHERE deleted_at IS NULL AND name_normalized LIKE ANY($1) AND %s
		ORDER BY entry_date DESC, updated_at DESC
	`, recordColumns, scopeSQL)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return scanRecordRows(rows)
}

// RecordIterator is a lazy cursor over scoped records for the export path.
// The core hands it to the serializer and does no formatting itself.
type RecordIterator struct {
	rows pgx.Rows
	rec  *models.Record
	err  error
}

// Next advances the iterator. It returns false at the end or on error.
func (it *RecordIterator) Next() bool {
	if it.err != nil || !it.rows.Next() {
		if it.err == nil {
			it.err = it.rows.Err()
		}
		return false
	}
	it.rec, it.err = scanRecordRow(it.rows)
	return it.err == nil
}

// Record returns the current record.
func (it *RecordIterator) Record() *models.Record { return it.rec }

// Err reports the first error seen during iteration.
func (it *RecordIterator) Err() error { return it.err }

// Close releases the underlying cursor.
func (it *RecordIterator) Close() { it.rows.Close() }

// IterateRecords streams every live record in scope with entry dates inside
// the range, most recent first.
func (r *RecordRepository) IterateRecords(ctx context.Context, scope access.Scope, rng models.TimeRange) (*RecordIterator, error) {
	conds := []string{"deleted_at IS NULL"}
	args := []any{}

	scopeSQL, scopeArgs := scope.SQL(len(args) + 1)
	conds = append(conds, scopeSQL)
	args = append(args, scopeArgs...)

	conds, args = appendRangeConds(conds, args, rng)

	query := fmt.Sprintf(`
		SELECT %s FROM records
		WHERE %s
		ORDER BY entry_date DESC, updated_at DESC
	`, recordColumns, joinConds(conds))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &RecordIterator{rows: rows}, nil
}

func appendRangeConds(conds []string, args []any, rng models.TimeRange) ([]string, []any) {
	if !rng.From.IsZero() {
		args = append(args, rng.From)
		conds = append(conds, fmt.Sprintf("entry_date >= $%d", len(args)))
	}
	if !rng.To.IsZero() {
		args = append(args, rng.To)
		conds = append(conds, fmt.Sprintf("entry_date <= $%d", len(args)))
	}
	return conds, args
}

func joinConds(conds []string) string {
	out := conds[0]
	for _, c := range conds[1:] {
		out += " AND " + c
	}
	return out
}
