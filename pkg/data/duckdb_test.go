package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLedger(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestOpenCreatesSchema(t *testing.T) {
	repo := setupTestLedger(t)

	var count int
	err := repo.db.QueryRow(`SELECT COUNT(*) FROM information_schema.tables WHERE table_name = 'issues'`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "ledger.db")

	repo, err := Open(path)
	require.NoError(t, err)
	defer repo.Close()

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestRecordAndListIssues(t *testing.T) {
	repo := setupTestLedger(t)

	first := IssueRecord{
		Title:       "Dagens Nyheter",
		Date:        "1865-01-02",
		ManifestID:  "bib13991099",
		Assets:      4,
		Synced:      4,
		Success:     true,
		CompletedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
	second := IssueRecord{
		Title:       "Dagens Nyheter",
		Date:        "1865-01-03",
		ManifestID:  "bib13991100",
		Assets:      4,
		Synced:      2,
		Success:     false,
		CompletedAt: time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.RecordIssue(first))
	require.NoError(t, repo.RecordIssue(second))

	records, err := repo.ListIssues()
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Most recent first.
	assert.Equal(t, "bib13991100", records[0].ManifestID)
	assert.False(t, records[0].Success)
	assert.Equal(t, "bib13991099", records[1].ManifestID)
	assert.Equal(t, 4, records[1].Synced)
}

func TestSummary(t *testing.T) {
	repo := setupTestLedger(t)

	total, succeeded, err := repo.Summary()
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, succeeded)

	now := time.Now()
	require.NoError(t, repo.RecordIssue(IssueRecord{ManifestID: "a", Success: true, CompletedAt: now}))
	require.NoError(t, repo.RecordIssue(IssueRecord{ManifestID: "b", Success: false, CompletedAt: now}))
	require.NoError(t, repo.RecordIssue(IssueRecord{ManifestID: "c", Success: true, CompletedAt: now}))

	total, succeeded, err = repo.Summary()
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, succeeded)
}
