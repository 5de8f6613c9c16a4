// Package gsheet implements sheet.Store against the Google Sheets API
// using a service-account credentials file.
package gsheet

import (
	"context"
	"fmt"
	"strings"

	"github.com/perlindqvist/tolka/internal/sheet"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

type Store struct {
	svc           *sheetsapi.Service
	spreadsheetID string
}

func New(ctx context.Context, credentialsFile, spreadsheetID string) (*Store, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}
	return &Store{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func (s *Store) ListSheets(ctx context.Context) ([]string, error) {
	resp, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("listing worksheets: %w", err)
	}
	titles := make([]string, 0, len(resp.Sheets))
	for _, ws := range resp.Sheets {
		if ws.Properties != nil {
			titles = append(titles, ws.Properties.Title)
		}
	}
	return titles, nil
}

// quoteTitle wraps a worksheet title for A1 notation, doubling embedded
// single quotes.
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func (s *Store) ReadRows(ctx context.Context, worksheet string, cols sheet.ColumnMap, opts sheet.ReadOptions) ([]sheet.Row, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, quoteTitle(worksheet)).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading worksheet %q: %w", worksheet, err)
	}

	cell := func(row []interface{}, idx int) string {
		if idx < 1 || idx > len(row) {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(row[idx-1]))
	}

	start := opts.StartRow
	if min := opts.HeaderRows + 1; start < min {
		start = min
	}

	var rows []sheet.Row
	for r := start; r <= len(resp.Values); r++ {
		raw := resp.Values[r-1]
		rows = append(rows, sheet.Row{
			Index:   r,
			Speaker: cell(raw, cols.Speaker),
			SourceA: cell(raw, cols.SourceA),
			SourceB: cell(raw, cols.SourceB),
			Output:  cell(raw, cols.Output),
		})
		if opts.Limit > 0 && len(rows) >= opts.Limit {
			break
		}
	}
	return rows, nil
}

func (s *Store) WriteCell(ctx context.Context, worksheet string, row, col int, value string) error {
	a1 := fmt.Sprintf("%s!%s%d", quoteTitle(worksheet), sheet.ColumnLetter(col), row)
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, a1, &sheetsapi.ValueRange{
		Values: [][]interface{}{{value}},
	}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing %s: %w", a1, err)
	}
	return nil
}

func (s *Store) WriteColumnRange(ctx context.Context, worksheet string, col, startRow int, values []string) error {
	if len(values) == 0 {
		return nil
	}
	letter := sheet.ColumnLetter(col)
	a1 := fmt.Sprintf("%s!%s%d:%s%d", quoteTitle(worksheet), letter, startRow, letter, startRow+len(values)-1)

	payload := make([][]interface{}, len(values))
	for i, v := range values {
		payload[i] = []interface{}{v}
	}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, a1, &sheetsapi.ValueRange{
		Values: payload,
	}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing %s: %w", a1, err)
	}
	return nil
}

func (s *Store) Close() error { return nil }
