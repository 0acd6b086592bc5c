package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quangtmn/visitreg/internal/database"
	"github.com/quangtmn/visitreg/internal/models"
)

// RegionRepository reads the known administrative units.
type RegionRepository struct {
	pool *pgxpool.Pool
}

func NewRegionRepository(db *database.DB) *RegionRepository {
	return &RegionRepository{pool: db.Pool}
}

func (r *RegionRepository) List(ctx context.Context) ([]models.Region, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, name FROM regions ORDER BY code`)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	regions := make([]models.Region, 0)
	for rows.Next() {
		var reg models.Region
		if err := rows.Scan(&reg.Code, &reg.Name); err != nil {
			return nil, database.MapPostgresError(err)
		}
		regions = append(regions, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}
	return regions, nil
}

// KnownCodes returns the valid region codes as a set, for record
// validation.
func (r *RegionRepository) KnownCodes(ctx context.Context) (map[string]bool, error) {
	regions, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	codes := make(map[string]bool, len(regions))
	for _, reg := range regions {
		codes[reg.Code] = true
	}
	return codes, nil
}
