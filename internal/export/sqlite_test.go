package export

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLite_Export(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.db")
	x := NewSQLite(path)
	x.batchSize = 4 // Force a commit mid-run.
	assert.Equal(t, "sqlite", x.Name())
	assert.Empty(t, x.RunID())

	tree := testTree(t)
	require.NoError(t, x.Export(t.Context(), tree))
	first := x.RunID()
	require.NotEmpty(t, first)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var seed, base string
	var count int
	require.NoError(t, db.QueryRow(`SELECT seed, base, entries FROM runs WHERE id = ?`, first).Scan(&seed, &base, &count))
	assert.Equal(t, "7", seed)
	assert.Equal(t, "dc=example,dc=org", base)
	assert.Equal(t, 6, count)

	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM entries WHERE run_id = ?`, first).Scan(&count))
	assert.Equal(t, 6, count)

	// 2 units with 3 values and 4 people with 4 values.
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM attributes WHERE run_id = ?`, first).Scan(&count))
	assert.Equal(t, 22, count)

	var parentDN string
	var level int
	require.NoError(t, db.QueryRow(
		`SELECT parent_dn, level FROM entries WHERE run_id = ? AND dn = ?`,
		first, `cn=Bob Doe\, Jr,ou=Engineering,dc=example,dc=org`,
	).Scan(&parentDN, &level))
	assert.Equal(t, "ou=Engineering,dc=example,dc=org", parentDN)
	assert.Equal(t, 1, level)

	var rootParent sql.NullString
	require.NoError(t, db.QueryRow(
		`SELECT parent_dn FROM entries WHERE run_id = ? AND id = 0`, first,
	).Scan(&rootParent))
	assert.False(t, rootParent.Valid)

	var values []string
	rows, err := db.Query(
		`SELECT value FROM attributes WHERE run_id = ? AND entry_id = 2 ORDER BY position`, first)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var v string
		require.NoError(t, rows.Scan(&v))
		values = append(values, v)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"top", "person", "Alice Smith", "Doe, Jr"}, values)

	// A second export adds a new run to the same database.
	require.NoError(t, x.Export(t.Context(), tree))
	assert.NotEqual(t, first, x.RunID())
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestSQLite_ExportFailureRemovesRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.db")
	x := NewSQLite(path)
	x.batchSize = 4

	tree := testTree(t)
	require.NoError(t, x.Export(t.Context(), tree))
	first := x.RunID()

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	// Fails after the first batch of the next run has been committed.
	_, err = db.Exec(`CREATE TRIGGER reject_entry BEFORE INSERT ON entries
		WHEN NEW.id = 5 BEGIN SELECT RAISE(ABORT, 'entry rejected'); END`)
	require.NoError(t, err)

	err = x.Export(t.Context(), tree)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry rejected")
	assert.Equal(t, first, x.RunID())

	counts := map[string]int{
		`SELECT COUNT(*) FROM runs`:       1,
		`SELECT COUNT(*) FROM entries`:    6,
		`SELECT COUNT(*) FROM attributes`: 22,
	}
	for query, want := range counts {
		var got int
		require.NoError(t, db.QueryRow(query).Scan(&got))
		assert.Equal(t, want, got, query)
	}
}

func TestOpenSQLite_TuningAppliesToWriter(t *testing.T) {
	db, err := openSQLite(t.Context(), filepath.Join(t.TempDir(), "entries.db"))
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 1, db.Stats().MaxOpenConnections)

	tx, err := db.BeginTx(t.Context(), nil)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	var synchronous int
	var journal string
	require.NoError(t, tx.QueryRow(`PRAGMA synchronous`).Scan(&synchronous))
	require.NoError(t, tx.QueryRow(`PRAGMA journal_mode`).Scan(&journal))
	assert.Equal(t, 0, synchronous)
	assert.Equal(t, "memory", journal)
}
