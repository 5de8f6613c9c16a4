// Package sqlite implements sheet.Store on a local SQLite file, used for
// offline runs, seeding test fixtures, and dry-run rehearsal against a
// snapshot of the real spreadsheet.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/perlindqvist/tolka/internal/sheet"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

// New opens (or creates) the store at dbPath. ":memory:" works for tests.
func New(ctx context.Context, dbPath string) (*Store, error) {
	dbPath = strings.TrimPrefix(dbPath, "sqlite://")

	isNew := dbPath == ":memory:"
	if !isNew {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			isNew = true
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening SQLite database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	if isNew && dbPath != ":memory:" {
		slog.Info("created new SQLite sheet store", "path", dbPath)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSheet registers a worksheet title. Writes register implicitly, so
// this only matters for empty worksheets that should still be listed.
func (s *Store) CreateSheet(ctx context.Context, title string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO worksheets (title) VALUES (?) ON CONFLICT (title) DO NOTHING`, title)
	return err
}

func (s *Store) ListSheets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT title FROM worksheets ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, err
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

func (s *Store) ReadRows(ctx context.Context, worksheet string, cols sheet.ColumnMap, opts sheet.ReadOptions) ([]sheet.Row, error) {
	var lastRow sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(row_idx) FROM cells WHERE worksheet = ?`, worksheet).Scan(&lastRow)
	if err != nil {
		return nil, err
	}
	if !lastRow.Valid {
		return nil, nil
	}

	cells, err := s.db.QueryContext(ctx,
		`SELECT row_idx, col_idx, value FROM cells WHERE worksheet = ? ORDER BY row_idx, col_idx`,
		worksheet)
	if err != nil {
		return nil, err
	}
	defer cells.Close()

	grid := make(map[int]map[int]string)
	for cells.Next() {
		var r, c int
		var v string
		if err := cells.Scan(&r, &c, &v); err != nil {
			return nil, err
		}
		if grid[r] == nil {
			grid[r] = make(map[int]string)
		}
		grid[r][c] = v
	}
	if err := cells.Err(); err != nil {
		return nil, err
	}

	start := opts.StartRow
	if min := opts.HeaderRows + 1; start < min {
		start = min
	}

	var out []sheet.Row
	for r := start; r <= int(lastRow.Int64); r++ {
		out = append(out, sheet.Row{
			Index:   r,
			Speaker: strings.TrimSpace(grid[r][cols.Speaker]),
			SourceA: strings.TrimSpace(grid[r][cols.SourceA]),
			SourceB: strings.TrimSpace(grid[r][cols.SourceB]),
			Output:  strings.TrimSpace(grid[r][cols.Output]),
		})
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) WriteCell(ctx context.Context, worksheet string, row, col int, value string) error {
	if err := s.CreateSheet(ctx, worksheet); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cells (worksheet, row_idx, col_idx, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (worksheet, row_idx, col_idx) DO UPDATE SET value = excluded.value
	`, worksheet, row, col, value)
	return err
}

func (s *Store) WriteColumnRange(ctx context.Context, worksheet string, col, startRow int, values []string) error {
	if len(values) == 0 {
		return nil
	}
	if err := s.CreateSheet(ctx, worksheet); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, v := range values {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cells (worksheet, row_idx, col_idx, value)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (worksheet, row_idx, col_idx) DO UPDATE SET value = excluded.value
		`, worksheet, startRow+i, col, v)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
