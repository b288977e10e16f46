package export

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	_ "modernc.org/sqlite"

	"github.com/isometry/ldapfill/internal/entry"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	seed TEXT NOT NULL,
	base TEXT NOT NULL,
	entries INTEGER NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entries (
	run_id TEXT NOT NULL REFERENCES runs(id),
	id INTEGER NOT NULL,
	parent_id INTEGER,
	dn TEXT NOT NULL,
	parent_dn TEXT,
	object_class TEXT NOT NULL,
	rdn TEXT NOT NULL,
	level INTEGER NOT NULL,
	PRIMARY KEY (run_id, id)
) WITHOUT ROWID;
CREATE INDEX IF NOT EXISTS idx_entries_dn ON entries(dn);

CREATE TABLE IF NOT EXISTS attributes (
	run_id TEXT NOT NULL,
	entry_id INTEGER NOT NULL,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (run_id, entry_id, position)
) WITHOUT ROWID;
CREATE INDEX IF NOT EXISTS idx_attributes_value ON attributes(name, value);
`

// SQLite stores entries and their attributes in a SQLite database. Every
// export is a new run, so one database can hold several trees. Entries are
// keyed by their level-order position since generated DNs may collide.
type SQLite struct {
	path      string
	batchSize int
	runID     string
}

// NewSQLite returns an exporter writing to the database at path.
func NewSQLite(path string) *SQLite {
	return &SQLite{path: path, batchSize: 10000}
}

func (x *SQLite) Name() string {
	return "sqlite"
}

// RunID returns the identifier of the last export, empty before the first.
func (x *SQLite) RunID() string {
	return x.runID
}

func (x *SQLite) Export(ctx context.Context, tree *entry.Tree) error {
	db, err := openSQLite(ctx, x.path)
	if err != nil {
		return err
	}
	defer db.Close()

	runID := uuid.NewString()
	written, err := x.write(ctx, db, runID, tree)
	if err != nil {
		if delErr := deleteRun(context.WithoutCancel(ctx), db, runID); delErr != nil {
			tflog.SubsystemError(ctx, logSubsystem, "Failed to remove partial run", map[string]any{
				"run_id": runID,
				"error":  delErr.Error(),
			})
		}
		return err
	}

	x.runID = runID
	tflog.SubsystemInfo(ctx, logSubsystem, "SQLite export completed", map[string]any{
		"path":    x.path,
		"run_id":  runID,
		"entries": written,
	})
	return nil
}

// openSQLite opens the database on a single connection, tuned for bulk
// loading, with the schema in place.
func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// PRAGMAs are per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA synchronous = OFF", "PRAGMA journal_mode = MEMORY"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

// write records the run and its entries. Batches are committed as they
// fill, so a failure leaves rows behind for the caller to delete.
func (x *SQLite) write(ctx context.Context, db *sql.DB, runID string, tree *entry.Tree) (int, error) {
	if _, err := db.ExecContext(ctx,
		`INSERT INTO runs (id, seed, base, entries, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, fmt.Sprint(tree.Seed()), tree.Base(), tree.Len(), time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}

	w := &sqliteBatch{db: db, size: x.batchSize, ids: make(map[*entry.Entry]int64, tree.Len())}
	defer w.rollback()

	start := time.Now()
	written := 0
	for i := range tree.Depth() {
		for _, e := range tree.Level(i) {
			if err := w.add(ctx, runID, e); err != nil {
				return written, err
			}
			written++
		}
		logProgress(ctx, x.Name(), i, written, start)
	}
	return written, w.commit()
}

// deleteRun removes every row of a run.
func deleteRun(ctx context.Context, db *sql.DB, runID string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM attributes WHERE run_id = ?`,
		`DELETE FROM entries WHERE run_id = ?`,
		`DELETE FROM runs WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, runID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// sqliteBatch groups inserts into transactions of size entries.
type sqliteBatch struct {
	db    *sql.DB
	size  int
	count int
	ids   map[*entry.Entry]int64

	tx        *sql.Tx
	stmtEntry *sql.Stmt
	stmtAttr  *sql.Stmt
}

func (b *sqliteBatch) begin(ctx context.Context) error {
	var err error
	if b.tx, err = b.db.BeginTx(ctx, nil); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if b.stmtEntry, err = b.tx.PrepareContext(ctx, `
		INSERT INTO entries (run_id, id, parent_id, dn, parent_dn, object_class, rdn, level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`); err != nil {
		return fmt.Errorf("prepare entries insert: %w", err)
	}
	if b.stmtAttr, err = b.tx.PrepareContext(ctx, `
		INSERT INTO attributes (run_id, entry_id, position, name, value)
		VALUES (?, ?, ?, ?, ?)`); err != nil {
		return fmt.Errorf("prepare attributes insert: %w", err)
	}
	return nil
}

func (b *sqliteBatch) add(ctx context.Context, runID string, e *entry.Entry) error {
	if b.tx == nil {
		if err := b.begin(ctx); err != nil {
			return err
		}
	}

	id := int64(len(b.ids))
	b.ids[e] = id

	var parentID sql.NullInt64
	var parentDN sql.NullString
	if p := e.Parent(); p != nil {
		parentID = sql.NullInt64{Int64: b.ids[p], Valid: true}
		parentDN = sql.NullString{String: p.DN(), Valid: true}
	}
	if _, err := b.stmtEntry.ExecContext(ctx, runID, id, parentID, e.DN(), parentDN, e.ObjectClass(), e.RDN(), e.Level()); err != nil {
		return fmt.Errorf("insert entry %s: %w", e.DN(), err)
	}

	position := 0
	for _, attr := range Attributes(e) {
		for _, v := range attr.Values {
			if _, err := b.stmtAttr.ExecContext(ctx, runID, id, position, attr.Type, v); err != nil {
				return fmt.Errorf("insert attribute %s of %s: %w", attr.Type, e.DN(), err)
			}
			position++
		}
	}

	b.count++
	if b.count%b.size == 0 {
		return b.commit()
	}
	return nil
}

func (b *sqliteBatch) commit() error {
	if b.tx == nil {
		return nil
	}
	b.stmtEntry.Close()
	b.stmtAttr.Close()
	err := b.tx.Commit()
	b.tx = nil
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (b *sqliteBatch) rollback() {
	if b.tx != nil {
		_ = b.tx.Rollback()
		b.tx = nil
	}
}
