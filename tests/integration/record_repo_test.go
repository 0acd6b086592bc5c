package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quangtmn/visitreg/internal/access"
	"github.com/quangtmn/visitreg/internal/models"
)

func TestInsertBatchBumpsVersionOnce(t *testing.T) {
	ctx := resetDB(t)
	repo := testServer.Records

	recs := []*models.Record{
		Visit("P123456", "Nguyễn Văn An", RegionBaoYen, "2025-01-10"),
		Visit("P234567", "Trần Thị Bình", RegionBaoYen, "2025-01-11"),
		Visit("P345678", "Lê Hồng Cúc", RegionDongTrung, "2025-01-12"),
	}

	accepted, duplicates, version, err := repo.InsertBatch(ctx, recs, models.ImportAppend)
	require.NoError(t, err)
	assert.Equal(t, 3, accepted)
	assert.Empty(t, duplicates)
	assert.Equal(t, int64(1), version)

	current, err := repo.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), current)
}

func TestInsertBatchSkipsStoredDuplicates(t *testing.T) {
	ctx := resetDB(t)
	repo := testServer.Records

	_, err := SeedVisits(ctx, repo, Visit("P123456", "Nguyễn Văn An", RegionBaoYen, "2025-01-10"))
	require.NoError(t, err)

	accepted, duplicates, version, err := repo.InsertBatch(ctx, []*models.Record{
		Visit("P123456", "Nguyễn Văn An", RegionBaoYen, "2025-01-10"), // same visit
		Visit("P123456", "Nguyễn Văn An", RegionBaoYen, "2025-02-01"), // new visit, same person
	}, models.ImportAppend)
	require.NoError(t, err)

	assert.Equal(t, 1, accepted)
	assert.True(t, duplicates["P123456|2025-01-10"])
	assert.Equal(t, int64(2), version)

	// Exactly two live visits for the passport now.
	recs, err := repo.FindByPassports(ctx, access.All(), []string{"P123456"})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestInsertBatchAllDuplicatesDoesNotBump(t *testing.T) {
	ctx := resetDB(t)
	repo := testServer.Records

	seeded, err := SeedVisits(ctx, repo, Visit("P123456", "Nguyễn Văn An", RegionBaoYen, "2025-01-10"))
	require.NoError(t, err)

	accepted, duplicates, version, err := repo.InsertBatch(ctx, []*models.Record{
		Visit("P123456", "Nguyễn Văn An", RegionBaoYen, "2025-01-10"),
	}, models.ImportAppend)
	require.NoError(t, err)

	assert.Equal(t, 0, accepted)
	assert.Len(t, duplicates, 1)
	assert.Equal(t, seeded, version, "a batch that mutated nothing must not bump the version")
}

func TestReplaceSoftDeletesEverything(t *testing.T) {
	ctx := resetDB(t)
	repo := testServer.Records

	_, err := SeedVisits(ctx, repo,
		Visit("P123456", "Nguyễn Văn An", RegionBaoYen, "2025-01-10"),
		Visit("P234567", "Trần Thị Bình", RegionDongTrung, "2025-01-11"),
	)
	require.NoError(t, err)

	accepted, _, version, err := repo.InsertBatch(ctx, []*models.Record{
		Visit("P999999", "Phạm Văn Dũng", RegionBaoYen, "2025-03-01"),
	}, models.ImportReplace)
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)
	assert.Equal(t, int64(2), version)

	// The old visits are gone from every read path.
	recs, err := repo.FindByPassports(ctx, access.All(), []string{"P123456", "P234567", "P999999"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "P999999", recs[0].PassportNumber)
}

func TestSoftDeleteHidesRecord(t *testing.T) {
	ctx := resetDB(t)
	repo := testServer.Records

	_, err := SeedVisits(ctx, repo, Visit("P123456", "Nguyễn Văn An", RegionBaoYen, "2025-01-10"))
	require.NoError(t, err)

	recs, err := repo.FindByPassports(ctx, access.All(), []string{"P123456"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	id := recs[0].ID

	version, err := repo.SoftDelete(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	_, err = repo.GetByID(ctx, access.All(), id)
	assert.ErrorIs(t, err, models.ErrNotFound)

	recs, err = repo.FindByPassports(ctx, access.All(), []string{"P123456"})
	require.NoError(t, err)
	assert.Empty(t, recs)

	// Deleting twice is not found; the row is already dead.
	_, err = repo.SoftDelete(ctx, id)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPurgeRemovesRow(t *testing.T) {
	ctx := resetDB(t)
	repo := testServer.Records

	_, err := SeedVisits(ctx, repo, Visit("P123456", "Nguyễn Văn An", RegionBaoYen, "2025-01-10"))
	require.NoError(t, err)

	recs, err := repo.FindByPassports(ctx, access.All(), []string{"P123456"})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	_, err = repo.Purge(ctx, recs[0].ID)
	require.NoError(t, err)

	var count int
	err = testDB.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM records WHERE id = $1", recs[0].ID).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUpdateRewritesEditableFields(t *testing.T) {
	ctx := resetDB(t)
	repo := testServer.Records

	_, err := SeedVisits(ctx, repo, Visit("P123456", "Nguyễn Văn An", RegionBaoYen, "2025-01-10"))
	require.NoError(t, err)

	recs, err := repo.FindByPassports(ctx, access.All(), []string{"P123456"})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	rec.ExitDate = DatePtr("2025-02-20")
	rec.Notes = "departed via Lào Cai"

	version, err := repo.Update(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	got, err := repo.GetByID(ctx, access.All(), rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ExitDate)
	assert.Equal(t, "2025-02-20", got.ExitDate.Format("2006-01-02"))
	assert.Equal(t, "departed via Lào Cai", got.Notes)
}

func TestUpdateMissingRecordIsNotFound(t *testing.T) {
	ctx := resetDB(t)

	rec := Visit("P123456", "Nguyễn Văn An", RegionBaoYen, "2025-01-10")
	rec.ID = "00000000-0000-0000-0000-000000000000"

	_, err := testServer.Records.Update(ctx, rec)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUpdateVerificationNotesBumpsOnce(t *testing.T) {
	ctx := resetDB(t)
	repo := testServer.Records

	_, err := SeedVisits(ctx, repo,
		Visit("P123456", "Nguyễn Văn An", RegionBaoYen, "2025-01-10"),
		Visit("P123456", "Nguyễn Văn An", RegionBaoYen, "2025-03-05"),
		Visit("P234567", "Trần Thị Bình", RegionDongTrung, "2025-01-11"),
	)
	require.NoError(t, err)

	updated, version, err := repo.UpdateVerificationNotes(ctx, map[string]string{
		"P123456": "verified against border log",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated, "both visits of the passport get the note")
	assert.Equal(t, int64(2), version)

	recs, err := repo.FindByPassports(ctx, access.All(), []string{"P234567"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].Notes, "other passports untouched")
}

func TestScopedReadsStayInsideRegion(t *testing.T) {
	ctx := resetDB(t)
	repo := testServer.Records

	_, err := SeedVisits(ctx, repo,
		Visit("P123456", "Nguyễn Văn An", RegionBaoYen, "2025-01-10"),
		Visit("P234567", "Trần Thị Bình", RegionDongTrung, "2025-01-11"),
	)
	require.NoError(t, err)

	scope := access.Region(RegionBaoYen)

	recs, err := repo.FindByPassports(ctx, scope, []string{"P123456", "P234567"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "P123456", recs[0].PassportNumber)

	// A record outside the scope does not exist for the caller.
	all, err := repo.FindByPassports(ctx, access.All(), []string{"P234567"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	_, err = repo.GetByID(ctx, scope, all[0].ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestIterateRecordsRespectsRange(t *testing.T) {
	ctx := resetDB(t)
	repo := testServer.Records

	_, err := SeedVisits(ctx, repo,
		Visit("P123456", "Nguyễn Văn An", RegionBaoYen, "2025-01-10"),
		Visit("P234567", "Trần Thị Bình", RegionBaoYen, "2025-02-15"),
		Visit("P345678", "Lê Hồng Cúc", RegionBaoYen, "2025-04-01"),
	)
	require.NoError(t, err)

	it, err := repo.IterateRecords(ctx, access.All(), models.TimeRange{
		From: Date("2025-01-01"),
		To:   Date("2025-02-28"),
	})
	require.NoError(t, err)
	defer it.Close()

	var passports []string
	for it.Next() {
		passports = append(passports, it.Record().PassportNumber)
	}
	require.NoError(t, it.Err())

	// Most recent entry first.
	assert.Equal(t, []string{"P234567", "P123456"}, passports)
}
