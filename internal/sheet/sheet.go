// Package sheet defines the spreadsheet surface the pipeline consumes:
// ordered row reads and cell/range writes against a named worksheet.
// Backends live in the gsheet, sqlite and postgres subpackages.
package sheet

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Row is one unit of translatable work. Index is the 1-based spreadsheet
// row and is stable for the whole run.
type Row struct {
	Index   int
	Speaker string
	SourceA string
	SourceB string
	Output  string
}

// Translatable reports whether the row carries any source text. Rows with
// both source fields empty are skipped without touching the rolling
// context.
func (r Row) Translatable() bool {
	return r.SourceA != "" || r.SourceB != ""
}

// ColumnMap holds the 1-based column indices of the four fields.
type ColumnMap struct {
	Speaker int
	SourceA int
	SourceB int
	Output  int
}

// ReadOptions bounds a row sweep. StartRow below HeaderRows+1 is clamped
// up; Limit 0 means unlimited.
type ReadOptions struct {
	StartRow   int
	HeaderRows int
	Limit      int
}

type Store interface {
	ListSheets(ctx context.Context) ([]string, error)
	// ReadRows returns rows in ascending index order with all four fields
	// trimmed.
	ReadRows(ctx context.Context, sheet string, cols ColumnMap, opts ReadOptions) ([]Row, error)
	WriteCell(ctx context.Context, sheet string, row, col int, value string) error
	// WriteColumnRange writes values into col starting at startRow, one
	// value per consecutive row.
	WriteColumnRange(ctx context.Context, sheet string, col, startRow int, values []string) error
	Close() error
}

// ParseColumn converts a column letter ("A", "AA") or a numeric string
// ("3") to a 1-based index.
func ParseColumn(col string) (int, error) {
	s := strings.TrimSpace(col)
	if s == "" {
		return 0, fmt.Errorf("empty column")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 {
			return 0, fmt.Errorf("invalid column %q", col)
		}
		return n, nil
	}
	idx := 0
	for _, ch := range strings.ToUpper(s) {
		if ch < 'A' || ch > 'Z' {
			return 0, fmt.Errorf("invalid column %q", col)
		}
		idx = idx*26 + int(ch-'A') + 1
	}
	return idx, nil
}

// ColumnLetter converts a 1-based index back to A1-notation letters.
func ColumnLetter(idx int) string {
	var letters []byte
	for idx > 0 {
		idx--
		letters = append([]byte{byte('A' + idx%26)}, letters...)
		idx /= 26
	}
	return string(letters)
}

// quotaMarkers are the substrings that identify a rate/quota-limited write
// error. Matching is textual: the backends surface opaque errors and this
// is the one class the driver retries.
var quotaMarkers = []string{
	"quota",
	"rate limit",
	"ratelimitexceeded",
	"resource_exhausted",
	"429",
	"too many requests",
}

// IsQuota reports whether err looks like a rate/quota-limit rejection.
func IsQuota(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
