package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quangtmn/visitreg/internal/access"
	"github.com/quangtmn/visitreg/internal/database"
	"github.com/quangtmn/visitreg/internal/models"
)

// StatsRepository runs the grouped aggregation SQL for statistics reports.
// All queries are scoped and read-only.
type StatsRepository struct {
	pool *pgxpool.Pool
}

func NewStatsRepository(db *database.DB) *StatsRepository {
	return &StatsRepository{pool: db.Pool}
}

// groupKeyExpr maps a dimension to its SQL grouping expression. Time
// dimensions bucket the entry date.
func groupKeyExpr(dim models.Dimension) (string, error) {
	switch dim {
	case models.DimMonth:
		return `to_char(entry_date, 'YYYY-MM')`, nil
	case models.DimQuarter:
		return `to_char(entry_date, 'YYYY') || '-Q' || to_char(entry_date, 'Q')`, nil
	case models.DimYear:
		return `to_char(entry_date, 'YYYY')`, nil
	case models.DimRegion:
		return `region_code`, nil
	case models.DimPurpose:
		return `purpose`, nil
	case models.DimNationality:
		return `COALESCE(NULLIF(nationality, ''), 'unknown')`, nil
	default:
		return "", fmt.Errorf("%w: unsupported dimension %q", models.ErrBadRequest, dim)
	}
}

// CountScoped counts live records inside the scope and range. The
// aggregation row budget is checked against this before grouping.
func (r *StatsRepository) CountScoped(ctx context.Context, scope access.Scope, rng models.TimeRange) (int64, error) {
	conds := []string{"deleted_at IS NULL"}
	args := []any{}

	scopeSQL, scopeArgs := scope.SQL(len(args) + 1)
	conds = append(conds, scopeSQL)
	args = append(args, scopeArgs...)
	conds, args = appendRangeConds(conds, args, rng)

	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM records WHERE %s`, joinConds(conds))
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// GroupCounts returns grouped counts over the scoped, ranged subset. Groups
// with no rows are absent here; the service layer zero-fills them.
func (r *StatsRepository) GroupCounts(ctx context.Context, scope access.Scope, dim models.Dimension, rng models.TimeRange) ([]models.ReportGroup, error) {
	keyExpr, err := groupKeyExpr(dim)
	if err != nil {
		return nil, err
	}

	conds := []string{"deleted_at IS NULL"}
	args := []any{}

	scopeSQL, scopeArgs := scope.SQL(len(args) + 1)
	conds = append(conds, scopeSQL)
	args = append(args, scopeArgs...)
	conds, args = appendRangeConds(conds, args, rng)

	query := fmt.Sprintf(`
		SELECT %s AS group_key,
		       COUNT(*) AS cnt,
		       COUNT(*) FILTER (WHERE exit_date IS NULL) AS residing
		FROM records
		WHERE %s
		GROUP BY group_key
		ORDER BY group_key
	`, keyExpr, joinConds(conds))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	groups := make([]models.ReportGroup, 0)
	for rows.Next() {
		var g models.ReportGroup
		if err := rows.Scan(&g.Key, &g.Count, &g.CurrentlyResiding); err != nil {
			return nil, database.MapPostgresError(err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}
	return groups, nil
}

// Summary computes the headline totals for the statistics page.
func (r *StatsRepository) Summary(ctx context.Context, scope access.Scope, rng models.TimeRange) (*models.SummaryReport, error) {
	conds := []string{"deleted_at IS NULL"}
	args := []any{}

	scopeSQL, scopeArgs := scope.SQL(len(args) + 1)
	conds = append(conds, scopeSQL)
	args = append(args, scopeArgs...)
	conds, args = appendRangeConds(conds, args, rng)

	where := joinConds(conds)

	var s models.SummaryReport
	query := fmt.Sprintf(`
		SELECT COUNT(*),
		       COUNT(DISTINCT NULLIF(nationality, '')),
		       COUNT(*) FILTER (WHERE exit_date IS NULL)
		FROM records WHERE %s
	`, where)
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&s.TotalRecords, &s.TotalNationalities, &s.CurrentlyResiding); err != nil {
		return nil, database.MapPostgresError(err)
	}

	s.ByPurpose = make(map[string]int64, len(models.Purposes))
	query = fmt.Sprintf(`SELECT purpose, COUNT(*) FROM records WHERE %s GROUP BY purpose`, where)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var purpose string
		var count int64
		if err := rows.Scan(&purpose, &count); err != nil {
			return nil, database.MapPostgresError(err)
		}
		s.ByPurpose[purpose] = count
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &s, nil
}
