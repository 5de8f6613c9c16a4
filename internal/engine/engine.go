// Package engine turns pending rows into translation requests and maps the
// model's free-text replies back to per-row results.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/perlindqvist/tolka/internal/llm"
	"github.com/perlindqvist/tolka/internal/retry"
)

// Item is one row's translatable content. It carries no row identity;
// position within the batch is the only correlation back to the sheet.
type Item struct {
	Speaker string
	SourceA string
	SourceB string
}

type Config struct {
	// TargetLang is the language requested from the model, e.g. "Swedish".
	TargetLang string
	// SourceALabel and SourceBLabel name the two source columns in prompts,
	// e.g. "Ukrainian" and "English".
	SourceALabel string
	SourceBLabel string
	// BasePrompt is the operator-supplied standing instruction, prepended
	// to every system prompt. Opaque to the engine.
	BasePrompt string
	Retry      retry.Policy
}

type Engine struct {
	client llm.Client
	cfg    Config
}

func New(client llm.Client, cfg Config) *Engine {
	if cfg.TargetLang == "" {
		cfg.TargetLang = "Swedish"
	}
	if cfg.SourceALabel == "" {
		cfg.SourceALabel = "Ukrainian"
	}
	if cfg.SourceBLabel == "" {
		cfg.SourceBLabel = "English"
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	return &Engine{client: client, cfg: cfg}
}

func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}

func (e *Engine) systemPrompt(contextBlock, synopsis string) string {
	var sb strings.Builder
	sb.WriteString(e.cfg.BasePrompt)
	sb.WriteString("\n\nEpisode synopsis (if any):\n")
	sb.WriteString(orPlaceholder(synopsis, "(none)"))
	sb.WriteString("\n\nYou may use the context below to resolve references and keep terms consistent.\n")
	sb.WriteString(orPlaceholder(contextBlock, "(none)"))
	sb.WriteString("\n")
	return sb.String()
}

func (e *Engine) itemFields(item Item) string {
	return fmt.Sprintf("Character: %s\n%s: %s\n%s: %s",
		orPlaceholder(item.Speaker, "(unknown)"),
		e.cfg.SourceALabel, orPlaceholder(item.SourceA, "(empty)"),
		e.cfg.SourceBLabel, orPlaceholder(item.SourceB, "(empty)"),
	)
}

func (e *Engine) singlePrompt(item Item) string {
	return fmt.Sprintf(
		"Translate the following line into %s.\nKeep stage cues. Output %s only, excluding the character name.\n\n%s\n",
		e.cfg.TargetLang, e.cfg.TargetLang, e.itemFields(item))
}

func (e *Engine) batchPrompt(items []Item) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate the following %d lines into %s.\n", len(items), e.cfg.TargetLang)
	fmt.Fprintf(&sb, "Keep stage cues. Reply with a numbered list of %s answers in the same order, one item per line number, no commentary, excluding the character name.\n\n", e.cfg.TargetLang)
	for i, item := range items {
		fmt.Fprintf(&sb, "%d) %s\n\n", i+1, strings.ReplaceAll(e.itemFields(item), "\n", " / "))
	}
	return sb.String()
}

// TranslateOne translates a single row and returns the bare output line.
// Transport failures are retried per the engine policy before surfacing.
func (e *Engine) TranslateOne(ctx context.Context, item Item, contextBlock, synopsis string) (string, error) {
	system := e.systemPrompt(contextBlock, synopsis)
	user := e.singlePrompt(item)

	var out string
	err := e.cfg.Retry.Do(ctx, func() error {
		text, err := e.client.Complete(ctx, system, user)
		if err != nil {
			return err
		}
		out = strings.TrimSpace(text)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	return out, nil
}

// TranslateBatch translates items in one request and returns exactly
// len(items) outputs in item order. A reply that cannot be mapped back to
// the item count is retried like a transport failure; after the attempt
// ceiling the error carries ErrBatchParse so the caller can fall back to
// per-row translation.
func (e *Engine) TranslateBatch(ctx context.Context, items []Item, contextBlock, synopsis string) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if len(items) == 1 {
		out, err := e.TranslateOne(ctx, items[0], contextBlock, synopsis)
		if err != nil {
			return nil, err
		}
		return []string{out}, nil
	}

	system := e.systemPrompt(contextBlock, synopsis)
	user := e.batchPrompt(items)

	var outputs []string
	err := e.cfg.Retry.Do(ctx, func() error {
		text, err := e.client.Complete(ctx, system, user)
		if err != nil {
			return err
		}
		outputs, err = parseBatchResponse(text, len(items))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("translate batch of %d: %w", len(items), err)
	}
	return outputs, nil
}
