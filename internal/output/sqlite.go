package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	started_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    TEXT NOT NULL REFERENCES runs(id),
	direction TEXT NOT NULL,
	address   TEXT NOT NULL,
	category  TEXT NOT NULL,
	folder    TEXT NOT NULL,
	date      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS records_address ON records(address);
CREATE INDEX IF NOT EXISTS records_run ON records(run_id);
`

type recordRow struct {
	RunID     string `db:"run_id"`
	Direction string `db:"direction"`
	Address   string `db:"address"`
	Category  string `db:"category"`
	Folder    string `db:"folder"`
	Date      string `db:"date"`
}

// SQLiteSink stores records in a SQLite database, tagged with the run that
// produced them.
type SQLiteSink struct {
	db    *sqlx.DB
	runID string
}

// NewSQLiteSink opens (or creates) the database at dbPath and registers a
// new run.
func NewSQLiteSink(ctx context.Context, dbPath string, runID uuid.UUID) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	s := &SQLiteSink{db: db, runID: runID.String()}
	if _, err := db.ExecContext(ctx,
		"INSERT INTO runs (id, started_at) VALUES (?, ?)",
		s.runID, time.Now().UTC(),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering run %s: %w", s.runID, err)
	}

	return s, nil
}

// Emit inserts the records of one message in a single transaction.
func (s *SQLiteSink) Emit(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO records (run_id, direction, address, category, folder, date)
		VALUES (:run_id, :direction, :address, :category, :folder, :date)`

	for _, r := range records {
		row := recordRow{
			RunID:     s.runID,
			Direction: string(r.Direction),
			Address:   r.Address,
			Category:  r.Category,
			Folder:    r.Folder,
			Date:      r.Date.Format(DateLayout),
		}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("inserting record for %s: %w", r.Address, err)
		}
	}

	return tx.Commit()
}

// Records returns the records stored for run in insertion order.
func (s *SQLiteSink) Records(ctx context.Context, runID uuid.UUID) ([]Record, error) {
	var rows []recordRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT run_id, direction, address, category, folder, date
		FROM records WHERE run_id = ? ORDER BY id`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("querying records of run %s: %w", runID, err)
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse(DateLayout, row.Date)
		if err != nil {
			return nil, fmt.Errorf("parsing record date %q: %w", row.Date, err)
		}
		out = append(out, Record{
			Direction: Direction(row.Direction),
			Address:   row.Address,
			Category:  row.Category,
			Folder:    row.Folder,
			Date:      date,
		})
	}
	return out, nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
