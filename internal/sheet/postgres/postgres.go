// Package postgres implements sheet.Store on PostgreSQL via pgx, for
// teams staging spreadsheet snapshots in a shared database instead of a
// local file.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/perlindqvist/tolka/internal/sheet"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS worksheets (
    title TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cells (
    worksheet TEXT NOT NULL REFERENCES worksheets(title),
    row_idx   INTEGER NOT NULL,
    col_idx   INTEGER NOT NULL,
    value     TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (worksheet, row_idx, col_idx)
);
`

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	config.MaxConns = 5
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 30 * time.Second
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) ensureSheet(ctx context.Context, tx pgx.Tx, title string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO worksheets (title) VALUES ($1) ON CONFLICT (title) DO NOTHING`, title)
	return err
}

func (s *Store) ListSheets(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT title FROM worksheets ORDER BY created_at, title`)
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
	cells, err := s.pool.Query(ctx,
		`SELECT row_idx, col_idx, value FROM cells WHERE worksheet = $1 ORDER BY row_idx, col_idx`,
		worksheet)
	if err != nil {
		return nil, err
	}
	defer cells.Close()

	grid := make(map[int]map[int]string)
	lastRow := 0
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
		if r > lastRow {
			lastRow = r
		}
	}
	if err := cells.Err(); err != nil {
		return nil, err
	}

	start := opts.StartRow
	if min := opts.HeaderRows + 1; start < min {
		start = min
	}

	var out []sheet.Row
	for r := start; r <= lastRow; r++ {
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
	return s.writeTx(ctx, worksheet, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO cells (worksheet, row_idx, col_idx, value)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (worksheet, row_idx, col_idx) DO UPDATE SET value = EXCLUDED.value
		`, worksheet, row, col, value)
		return err
	})
}

func (s *Store) WriteColumnRange(ctx context.Context, worksheet string, col, startRow int, values []string) error {
	if len(values) == 0 {
		return nil
	}
	return s.writeTx(ctx, worksheet, func(tx pgx.Tx) error {
		for i, v := range values {
			_, err := tx.Exec(ctx, `
				INSERT INTO cells (worksheet, row_idx, col_idx, value)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (worksheet, row_idx, col_idx) DO UPDATE SET value = EXCLUDED.value
			`, worksheet, startRow+i, col, v)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) writeTx(ctx context.Context, worksheet string, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.ensureSheet(ctx, tx, worksheet); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
