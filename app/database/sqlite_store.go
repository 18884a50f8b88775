package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lysyi3m/patch-comb/app/changes"
	"github.com/lysyi3m/patch-comb/app/patch"
)

const DatabaseFile = "patches.db"

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore keeps records in a patches table ordered by position, newest
// first at position 0.
type SQLiteStore struct {
	db *sql.DB
}

// connectionPragmas run on every pooled connection the driver opens.
var connectionPragmas = []string{
	"foreign_keys(1)",
	"journal_mode(wal)",
	"busy_timeout(1000)",
}

func sqliteDSN(path string) string {
	dsn := path
	for i, pragma := range connectionPragmas {
		sep := "&"
		if i == 0 {
			sep = "?"
		}
		dsn += sep + "_pragma=" + pragma
	}
	return dsn
}

func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", sqliteDSN(filepath.Join(dir, DatabaseFile)))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	version, dirty, err := RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Debug("Database migrations applied", "version", version, "dirty", dirty)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*patch.State, error) {
	state := patch.NewState()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, date, version, steam_url, summary, changes, raw_content, added_at
		FROM patches
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query patches: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var record patch.Record
		var changesJSON, addedAt string

		err := rows.Scan(&record.ID, &record.Title, &record.Date, &record.Version,
			&record.SteamURL, &record.Summary, &changesJSON, &record.RawContent, &addedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patch: %w", err)
		}

		record.Changes = changes.NewCategorizedChanges()
		if err := json.Unmarshal([]byte(changesJSON), &record.Changes); err != nil {
			return nil, fmt.Errorf("failed to decode changes of %s: %w", record.ID, err)
		}

		if record.AddedAt, err = time.Parse(time.RFC3339Nano, addedAt); err != nil {
			return nil, fmt.Errorf("failed to parse added_at of %s: %w", record.ID, err)
		}

		state.Patches = append(state.Patches, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patches: %w", err)
	}

	var lastChecked string
	err = s.db.QueryRowContext(ctx, `SELECT last_checked_at FROM ingest_state WHERE id = 1`).Scan(&lastChecked)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to query last check: %w", err)
	default:
		if state.LastCheckedAt, err = time.Parse(time.RFC3339Nano, lastChecked); err != nil {
			return nil, fmt.Errorf("failed to parse last check: %w", err)
		}
	}

	return state, nil
}

// Save rewrites the table in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, state *patch.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM patches`); err != nil {
		return fmt.Errorf("failed to clear patches: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO patches (
			id, position, title, date, version, steam_url, summary, changes, raw_content, added_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for position, record := range state.Patches {
		changesJSON, err := json.Marshal(record.Changes)
		if err != nil {
			return fmt.Errorf("failed to encode changes of %s: %w", record.ID, err)
		}

		_, err = stmt.ExecContext(ctx, record.ID, position, record.Title, record.Date, record.Version,
			record.SteamURL, record.Summary, string(changesJSON), record.RawContent,
			record.AddedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("failed to insert patch %s: %w", record.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ingest_state (id, last_checked_at) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET last_checked_at = excluded.last_checked_at
	`, state.LastCheckedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to store last check: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
