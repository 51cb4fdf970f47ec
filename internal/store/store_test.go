package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobaudit-engine/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func addPosition(t *testing.T, db *DB, p domain.Position) domain.Position {
	t.Helper()
	got, err := db.AddPosition(context.Background(), p)
	require.NoError(t, err)
	return got
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	var v int
	require.NoError(t, db.Pool.QueryRow(`PRAGMA user_version;`).Scan(&v))
	assert.Equal(t, schemaVersion, v)
}

func TestListOpenRoles(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	acme := domain.Company{Name: "Acme Corp"}

	older := addPosition(t, db, domain.Position{Company: acme, Title: "Go Engineer", URL: "https://acme.com/jobs/1",
		Status: domain.PositionOpen, DateAdded: DateAdded(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))})
	newer := addPosition(t, db, domain.Position{Company: domain.Company{Name: "  acme   corp "}, Title: "SRE", URL: "https://acme.com/jobs/2",
		Status: domain.PositionOpen, DateAdded: DateAdded(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))})
	addPosition(t, db, domain.Position{Company: acme, Title: "Hidden", URL: "https://acme.com/jobs/3",
		Status: domain.PositionOpen, Hidden: true})
	addPosition(t, db, domain.Position{Company: acme, Title: "Closed", URL: "https://acme.com/jobs/4",
		Status: domain.PositionClosed})
	addPosition(t, db, domain.Position{Company: acme, Title: "Default status", URL: "https://acme.com/jobs/5"})

	roles, err := db.ListOpenRoles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, newer.ID, roles[0].ID)
	assert.Equal(t, older.ID, roles[1].ID)
	assert.Equal(t, roles[0].Company.ID, roles[1].Company.ID, "company names fold to one row")
	assert.Equal(t, "Acme Corp", roles[0].Company.Name)
	assert.Equal(t, "unsure", roles[0].VisaSponsored)
	assert.Equal(t, "full-time", roles[0].JobType)
}

func TestListOpenRolesEmpty(t *testing.T) {
	roles, err := openTestDB(t).ListOpenRoles(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, roles)
	assert.Empty(t, roles)
}

func TestUpdatePositionStatus(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	p := addPosition(t, db, domain.Position{Company: domain.Company{Name: "Acme"}, Title: "SRE", URL: "https://acme.com/jobs/1",
		Status: domain.PositionOpen})
	now := time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)

	closed, err := db.UpdatePositionStatus(ctx, p.ID, domain.PositionClosed, now)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionClosed, closed.Status)
	assert.Equal(t, "03/09/24", closed.ClosedOn)

	reopened, err := db.UpdatePositionStatus(ctx, p.ID, domain.PositionOpen, now)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionOpen, reopened.Status)
	assert.Empty(t, reopened.ClosedOn)

	_, err = db.UpdatePositionStatus(ctx, "missing", domain.PositionOpen, now)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.UpdatePositionStatus(ctx, p.ID, domain.PositionPostponed, now)
	assert.Error(t, err)

	_, err = db.GetPosition(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveDiscovered(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	results := []domain.SearchResult{
		{Source: "careers", Company: "Acme", Jobs: []domain.JobPosting{
			{Title: "Go Engineer", URL: "https://acme.com/jobs/1"},
			{Title: "Go Engineer", URL: "https://acme.com/jobs/1"},
			{Title: "", URL: "https://acme.com/jobs/2"},
		}},
		{Source: "lever", Company: "Globex", Jobs: []domain.JobPosting{
			{Title: "SRE", URL: "https://jobs.lever.co/globex/9"},
		}},
		{Source: "lever", Company: " ", Jobs: []domain.JobPosting{
			{Title: "Orphan", URL: "https://jobs.lever.co/x/1"},
		}},
	}

	added, err := db.SaveDiscovered(ctx, results)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = db.SaveDiscovered(ctx, results)
	require.NoError(t, err)
	assert.Equal(t, 0, added, "known urls are left alone")

	roles, err := db.ListOpenRoles(ctx)
	require.NoError(t, err)
	assert.Empty(t, roles, "discovered rows stay hidden")

	var logo string
	require.NoError(t, db.Pool.QueryRow(`SELECT logo_url FROM companies WHERE name_key = 'acme'`).Scan(&logo))
	assert.Equal(t, "https://www.google.com/s2/favicons?domain=acme.com&sz=64", logo)

	require.NoError(t, db.Pool.QueryRow(`SELECT logo_url FROM companies WHERE name_key = 'globex'`).Scan(&logo))
	assert.Empty(t, logo)
}

func TestHelpers(t *testing.T) {
	assert.True(t, ValidStatusUpdate("open"))
	assert.False(t, ValidStatusUpdate("notOpen"))
	assert.Equal(t, "", ClosedOn("open", time.Now()))
	assert.Equal(t, "acme corp", NormalizeCompanyKey("  Acme\tCorp "))
	assert.Equal(t, "", LogoURL("https://boards.greenhouse.io/acme/jobs/1"))
	assert.Equal(t, "https://www.google.com/s2/favicons?domain=acme.com&sz=64", LogoURL("https://www.acme.com/careers"))
	assert.Equal(t, "2024-01-02T03:04:05.000000Z", DateAdded(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
}
