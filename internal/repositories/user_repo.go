package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quangtmn/visitreg/internal/database"
	"github.com/quangtmn/visitreg/internal/models"
)

// UserRepository stores operator identities. Credentials never touch this
// system; identity arrives resolved from the external provider and this
// table only carries role and region assignment.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

const userColumns = `id, username, role, region_code, created_at, last_seen_at`

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var role string
	var regionCode *string

	err := scanner.Scan(&user.ID, &user.Username, &role, &regionCode, &user.CreatedAt, &user.LastSeenAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	user.Role = models.Role(role)
	if regionCode != nil {
		user.RegionCode = *regionCode
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, username))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()

	var regionCode *string
	if user.RegionCode != "" {
		regionCode = &user.RegionCode
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, username, role, region_code, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Username, string(user.Role), regionCode, user.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return user, nil
}

// TouchLastSeen records recent activity; failures are not fatal to the
// request that triggered it.
func (r *UserRepository) TouchLastSeen(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_seen_at = now() WHERE id = $1`, id)
	return database.MapPostgresError(err)
}
