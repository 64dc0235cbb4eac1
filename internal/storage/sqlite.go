// Package storage persists reconciled repair orders into SQLite.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// TimestampLayout is how repair_order.timestamp values are rendered in the
// TEXT column.
const TimestampLayout = "2006-01-02T15:04:05"

// insertChunk is the number of rows packed into one multi-value INSERT,
// kept well under SQLite's bound-variable cap.
const insertChunk = 200

// Store wraps the SQLite database holding the repair_order tables. It is not
// safe for concurrent callers; the pipeline interacts with it from a single
// logical thread of control.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (or creates) the SQLite database at path and ensures the target
// schema is present. Pass ":memory:" for an in-memory database (used by
// tests).
func Open(path string, log zerolog.Logger) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to a single connection so the pragmas below apply to every
	// statement and "database is locked" errors cannot occur.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, log: log}
	if err := s.EnsureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema applies any embedded SQL migrations that have not been run
// yet. It is idempotent: calling it against an up-to-date database is a
// no-op and never creates duplicate tables.
func (s *Store) EnsureSchema() error {
	// Bootstrap the version table itself.
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		s.log.Debug().Int("version", version).Str("file", entry.Name()).Msg("applying migration")

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// Reset empties both target tables for a fresh full load. Detail rows are
// deleted before header rows so the foreign key is never violated
// mid-operation.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning reset transaction: %w", err)
	}
	defer tx.Rollback()

	if err := resetTables(ctx, tx, s.log); err != nil {
		return err
	}
	return tx.Commit()
}

func resetTables(ctx context.Context, tx *sql.Tx, log zerolog.Logger) error {
	for _, table := range []string{"repair_order_detail", "repair_order"} {
		log.Debug().Str("sql", "DELETE FROM "+table).Msg("executing")
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("resetting %s: %w", table, err)
		}
	}
	return nil
}

// Load replaces the store contents with the given snapshot. The reset and
// both bulk inserts run in a single transaction: a failure at any point
// leaves the previously loaded contents intact. Header rows are written
// before detail rows to satisfy the foreign key.
func (s *Store) Load(ctx context.Context, orders []RepairOrder, details []RepairOrderDetail) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	if err := resetTables(ctx, tx, s.log); err != nil {
		return err
	}
	if err := s.insertOrders(ctx, tx, orders); err != nil {
		return fmt.Errorf("inserting repair_order rows: %w", err)
	}
	if err := s.insertDetails(ctx, tx, details); err != nil {
		return fmt.Errorf("inserting repair_order_detail rows: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load: %w", err)
	}

	s.log.Info().Int("rows", len(orders)).Str("table", "repair_order").Msg("inserted")
	s.log.Info().Int("rows", len(details)).Str("table", "repair_order_detail").Msg("inserted")
	return nil
}

func (s *Store) insertOrders(ctx context.Context, tx *sql.Tx, orders []RepairOrder) error {
	for start := 0; start < len(orders); start += insertChunk {
		chunk := orders[start:min(start+insertChunk, len(orders))]
		args := make([]any, 0, len(chunk)*5)
		values := make([]string, 0, len(chunk))
		for _, o := range chunk {
			values = append(values, "(?, ?, ?, ?, ?)")
			args = append(args, o.OrderID, o.Timestamp.Format(TimestampLayout), o.Status, o.Cost, o.Technician)
		}
		query := "INSERT INTO repair_order (order_id, timestamp, status, cost, technician) VALUES " +
			strings.Join(values, ", ")
		s.log.Debug().Str("sql", query).Int("rows", len(chunk)).Msg("executing")
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertDetails(ctx context.Context, tx *sql.Tx, details []RepairOrderDetail) error {
	for start := 0; start < len(details); start += insertChunk {
		chunk := details[start:min(start+insertChunk, len(details))]
		args := make([]any, 0, len(chunk)*3)
		values := make([]string, 0, len(chunk))
		for _, d := range chunk {
			values = append(values, "(?, ?, ?)")
			args = append(args, d.OrderID, d.PartName, d.Quantity)
		}
		query := "INSERT INTO repair_order_detail (order_id, part_name, quantity) VALUES " +
			strings.Join(values, ", ")
		s.log.Debug().Str("sql", query).Int("rows", len(chunk)).Msg("executing")
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

// Counts reports the current number of rows in each target table.
func (s *Store) Counts(ctx context.Context) (orders, details int, err error) {
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM repair_order").Scan(&orders); err != nil {
		return 0, 0, fmt.Errorf("counting repair_order rows: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM repair_order_detail").Scan(&details); err != nil {
		return 0, 0, fmt.Errorf("counting repair_order_detail rows: %w", err)
	}
	return orders, details, nil
}

// Orders returns every repair_order row in order-id order.
func (s *Store) Orders(ctx context.Context) ([]RepairOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, timestamp, status, cost, technician
		FROM repair_order ORDER BY order_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RepairOrder
	for rows.Next() {
		var o RepairOrder
		var ts string
		if err := rows.Scan(&o.OrderID, &ts, &o.Status, &o.Cost, &o.Technician); err != nil {
			return nil, err
		}
		if o.Timestamp, err = parseTimestamp(ts); err != nil {
			return nil, fmt.Errorf("order %d: %w", o.OrderID, err)
		}
		results = append(results, o)
	}
	return results, rows.Err()
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// Details returns every repair_order_detail row, ordered by the table key.
func (s *Store) Details(ctx context.Context) ([]RepairOrderDetail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, part_name, quantity
		FROM repair_order_detail ORDER BY order_id, part_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RepairOrderDetail
	for rows.Next() {
		var d RepairOrderDetail
		if err := rows.Scan(&d.OrderID, &d.PartName, &d.Quantity); err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}
