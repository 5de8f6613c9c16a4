// Package pipeline sweeps spreadsheet rows in order, decides which rows
// need translation, batches the pending ones, and writes results back.
//
// The rolling context tracker is owned here and is updated in strict
// row-index order; later rows' prompts depend on earlier rows' context, so
// rows and batches are processed strictly sequentially.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/perlindqvist/tolka/internal/engine"
	"github.com/perlindqvist/tolka/internal/retry"
	"github.com/perlindqvist/tolka/internal/rolling"
	"github.com/perlindqvist/tolka/internal/sheet"
)

// Translator is the slice of the engine the driver needs.
type Translator interface {
	TranslateOne(ctx context.Context, item engine.Item, contextBlock, synopsis string) (string, error)
	TranslateBatch(ctx context.Context, items []engine.Item, contextBlock, synopsis string) ([]string, error)
}

type Config struct {
	Worksheet  string
	Columns    sheet.ColumnMap
	StartRow   int
	HeaderRows int
	// Limit bounds the number of rows read; 0 means unlimited.
	Limit int
	// BatchSize <= 1 disables batching: one request and one cell write per
	// row.
	BatchSize      int
	SkipTranslated bool
	Force          bool
	DryRun         bool
	Synopsis       string
	// WriteRetry governs sheet writes. Its predicate defaults to
	// sheet.IsQuota: quota rejections back off and retry, anything else is
	// immediately fatal for that write.
	WriteRetry retry.Policy
}

type Summary struct {
	Seen        int
	Translated  int
	AlreadyDone int
	NoContent   int
	Failed      int
}

type Driver struct {
	store      sheet.Store
	translator Translator
	tracker    *rolling.Tracker
	cfg        Config
	log        *slog.Logger
}

func New(store sheet.Store, translator Translator, tracker *rolling.Tracker, cfg Config, log *slog.Logger) *Driver {
	if cfg.WriteRetry.MaxAttempts == 0 {
		cfg.WriteRetry = retry.Policy{MaxAttempts: 5, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}
	}
	if cfg.WriteRetry.Retryable == nil {
		cfg.WriteRetry.Retryable = sheet.IsQuota
	}
	return &Driver{store: store, translator: translator, tracker: tracker, cfg: cfg, log: log}
}

// Tracker exposes the rolling context for inspection after a run.
func (d *Driver) Tracker() *rolling.Tracker { return d.tracker }

// Run performs one sweep over the configured row range. Row and batch
// failures are logged and skipped; only the initial read aborts the run.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	rows, err := d.store.ReadRows(ctx, d.cfg.Worksheet, d.cfg.Columns, sheet.ReadOptions{
		StartRow:   d.cfg.StartRow,
		HeaderRows: d.cfg.HeaderRows,
		Limit:      d.cfg.Limit,
	})
	if err != nil {
		return sum, fmt.Errorf("reading rows: %w", err)
	}
	sum.Seen = len(rows)
	d.log.Info("processing rows", "count", len(rows), "worksheet", d.cfg.Worksheet)

	var pending []sheet.Row
	for _, row := range rows {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}

		// No source text at all: not translatable, carries nothing worth
		// remembering either.
		if !row.Translatable() {
			sum.NoContent++
			continue
		}

		if d.cfg.SkipTranslated && !d.cfg.Force && row.Output != "" {
			// Flush first so context updates stay in row order.
			d.flush(ctx, pending, &sum)
			pending = nil
			d.tracker.Update(row.Speaker, row.SourceA, row.SourceB, row.Output)
			sum.AlreadyDone++
			continue
		}

		if d.cfg.BatchSize <= 1 {
			d.translateSingle(ctx, row, &sum)
			continue
		}

		pending = append(pending, row)
		if len(pending) >= d.cfg.BatchSize {
			d.flush(ctx, pending, &sum)
			pending = nil
		}
	}
	d.flush(ctx, pending, &sum)

	d.log.Info("run complete",
		"seen", sum.Seen,
		"translated", sum.Translated,
		"already_done", sum.AlreadyDone,
		"no_content", sum.NoContent,
		"failed", sum.Failed,
	)
	return sum, nil
}

func item(row sheet.Row) engine.Item {
	return engine.Item{Speaker: row.Speaker, SourceA: row.SourceA, SourceB: row.SourceB}
}

// translateSingle is the unbatched mode: one request, one cell write.
func (d *Driver) translateSingle(ctx context.Context, row sheet.Row, sum *Summary) {
	out, err := d.translator.TranslateOne(ctx, item(row), d.tracker.BuildContextBlock(), d.cfg.Synopsis)
	if err != nil {
		d.log.Error("translation failed", "row", row.Index, "error", err)
		sum.Failed++
		return
	}

	if d.cfg.DryRun {
		d.log.Info("[dry-run] translated", "row", row.Index, "speaker", row.Speaker, "output", out)
	} else if err := d.writeCell(ctx, row.Index, out); err != nil {
		d.log.Error("write failed", "row", row.Index, "error", err)
		sum.Failed++
		return
	}

	d.tracker.Update(row.Speaker, row.SourceA, row.SourceB, out)
	sum.Translated++
}

// flush translates the pending rows as one batch. On batch failure the rows
// are retried one by one with the same context block; rows that still fail
// are logged and dropped without a context update.
func (d *Driver) flush(ctx context.Context, pending []sheet.Row, sum *Summary) {
	if len(pending) == 0 {
		return
	}

	contextBlock := d.tracker.BuildContextBlock()
	items := make([]engine.Item, len(pending))
	for i, row := range pending {
		items[i] = item(row)
	}

	outputs, err := d.translator.TranslateBatch(ctx, items, contextBlock, d.cfg.Synopsis)
	if err != nil {
		d.log.Warn("batch translation failed, falling back to per-row",
			"rows", len(pending), "parse_failure", errors.Is(err, engine.ErrBatchParse), "error", err)
		for _, row := range pending {
			d.translateSingleWithContext(ctx, row, contextBlock, sum)
		}
		return
	}

	wrote := d.writeBatch(ctx, pending, outputs)

	// Context updates happen after the whole batch resolves, in the
	// batch's row order, skipping rows whose write failed.
	for i, row := range pending {
		if !wrote[i] {
			sum.Failed++
			continue
		}
		d.tracker.Update(row.Speaker, row.SourceA, row.SourceB, outputs[i])
		sum.Translated++
	}
}

// translateSingleWithContext reuses an already-built context block for the
// per-row fallback after a failed batch call. Successful rows update
// context immediately, preserving row order within the fallback.
func (d *Driver) translateSingleWithContext(ctx context.Context, row sheet.Row, contextBlock string, sum *Summary) {
	out, err := d.translator.TranslateOne(ctx, item(row), contextBlock, d.cfg.Synopsis)
	if err != nil {
		d.log.Error("translation failed", "row", row.Index, "error", err)
		sum.Failed++
		return
	}

	if d.cfg.DryRun {
		d.log.Info("[dry-run] translated", "row", row.Index, "speaker", row.Speaker, "output", out)
	} else if err := d.writeCell(ctx, row.Index, out); err != nil {
		d.log.Error("write failed", "row", row.Index, "error", err)
		sum.Failed++
		return
	}

	d.tracker.Update(row.Speaker, row.SourceA, row.SourceB, out)
	sum.Translated++
}

// writeBatch writes each contiguous run of row indices as one range write,
// degrading to per-cell writes when a range write fails. Returns one flag
// per pending row. In dry-run mode nothing is written and every row counts
// as written.
func (d *Driver) writeBatch(ctx context.Context, pending []sheet.Row, outputs []string) []bool {
	wrote := make([]bool, len(pending))
	if d.cfg.DryRun {
		for i, row := range pending {
			d.log.Info("[dry-run] translated", "row", row.Index, "speaker", row.Speaker, "output", outputs[i])
			wrote[i] = true
		}
		return wrote
	}

	for start := 0; start < len(pending); {
		end := start + 1
		for end < len(pending) && pending[end].Index == pending[end-1].Index+1 {
			end++
		}
		d.writeSegment(ctx, pending[start:end], outputs[start:end], wrote[start:end])
		start = end
	}
	return wrote
}

func (d *Driver) writeSegment(ctx context.Context, rows []sheet.Row, outputs []string, wrote []bool) {
	err := d.cfg.WriteRetry.Do(ctx, func() error {
		return d.store.WriteColumnRange(ctx, d.cfg.Worksheet, d.cfg.Columns.Output, rows[0].Index, outputs)
	})
	if err == nil {
		for i := range wrote {
			wrote[i] = true
		}
		return
	}

	d.log.Warn("range write failed, falling back to per-cell writes",
		"start_row", rows[0].Index, "rows", len(rows), "error", err)
	for i, row := range rows {
		if err := d.writeCell(ctx, row.Index, outputs[i]); err != nil {
			d.log.Error("write failed", "row", row.Index, "error", err)
			continue
		}
		wrote[i] = true
	}
}

func (d *Driver) writeCell(ctx context.Context, row int, value string) error {
	return d.cfg.WriteRetry.Do(ctx, func() error {
		return d.store.WriteCell(ctx, d.cfg.Worksheet, row, d.cfg.Columns.Output, value)
	})
}
