// tolka translates bilingual dialogue rows in a spreadsheet into a target
// language with an LLM backend, carrying a rolling context between
// requests for cross-row consistency.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/peterbourgon/ff/v4/ffyaml"
	"github.com/perlindqvist/tolka/internal/anthropic"
	"github.com/perlindqvist/tolka/internal/engine"
	"github.com/perlindqvist/tolka/internal/google"
	"github.com/perlindqvist/tolka/internal/llm"
	"github.com/perlindqvist/tolka/internal/logger"
	"github.com/perlindqvist/tolka/internal/notify"
	"github.com/perlindqvist/tolka/internal/picker"
	"github.com/perlindqvist/tolka/internal/pipeline"
	"github.com/perlindqvist/tolka/internal/rolling"
	"github.com/perlindqvist/tolka/internal/sheet"
	"github.com/perlindqvist/tolka/internal/sheet/gsheet"
	"github.com/perlindqvist/tolka/internal/sheet/postgres"
	"github.com/perlindqvist/tolka/internal/sheet/sqlite"
)

// errConfig marks operator mistakes: missing credentials, malformed
// columns. They exit with a distinct status.
var errConfig = errors.New("configuration error")

func main() {
	if err := mainE(); err != nil {
		slog.Error("fatal", "error", err)
		if errors.Is(err, errConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func mainE() error {
	_ = godotenv.Load()
	log := logger.New()

	fs := ff.NewFlagSet("tolka")
	var (
		_ = fs.StringLong("config", "", "YAML config file")

		backend         = fs.StringLong("sheet-backend", "gsheet", "Spreadsheet backend: gsheet, sqlite or postgres")
		credentialsFile = fs.StringLong("credentials-file", "", "Google service-account JSON (gsheet backend)")
		spreadsheetID   = fs.StringLong("spreadsheet-id", "", "Google spreadsheet ID (gsheet backend)")
		sqlitePath      = fs.StringLong("sqlite-path", "", "SQLite file path (sqlite backend)")
		databaseURL     = fs.StringLong("database-url", "", "PostgreSQL connection URL (postgres backend)")

		worksheet  = fs.StringLong("sheet", "", "Worksheet title; prompts interactively when empty")
		speakerCol = fs.StringLong("speaker-col", "A", "Speaker/character column")
		sourceACol = fs.StringLong("source-a-col", "B", "First source language column")
		sourceBCol = fs.StringLong("source-b-col", "C", "Second source language column")
		outputCol  = fs.StringLong("output-col", "D", "Output (translation) column")
		headerRows = fs.IntLong("header-rows", 1, "Number of header rows to skip")
		startRow   = fs.IntLong("start-row", 0, "First row to process (default: first row after headers)")
		limit      = fs.IntLong("limit", 0, "Maximum rows to process, 0 = unlimited")

		batchSize      = fs.IntLong("batch-size", 1, "Rows per translation request, 1 = unbatched")
		windowSize     = fs.IntLong("window-size", rolling.DefaultWindowSize, "Rolling context window size")
		glossaryCap    = fs.IntLong("glossary-cap", rolling.DefaultGlossaryCap, "Maximum retained glossary terms")
		skipTranslated = fs.BoolLongDefault("skip-translated", true, "Skip rows whose output cell is already filled")
		force          = fs.BoolLongDefault("force", false, "Re-translate rows even when the output cell is filled")
		dryRun         = fs.BoolLongDefault("dry-run", false, "Translate but write nothing back")

		targetLang   = fs.StringLong("target-lang", "Swedish", "Target language")
		sourceALang  = fs.StringLong("source-a-lang", "Ukrainian", "Label of the first source language")
		sourceBLang  = fs.StringLong("source-b-lang", "English", "Label of the second source language")
		basePromptF  = fs.StringLong("base-prompt-file", "prompts/base_prompt.txt", "Standing instruction file")
		synopsisFile = fs.StringLong("synopsis-file", "", "Episode synopsis file")

		provider     = fs.StringLong("llm-provider", "anthropic", "LLM backend: anthropic or google")
		anthropicKey = fs.StringLong("anthropic-api-key", "", "Anthropic API key")
		googleKey    = fs.StringLong("google-api-key", "", "Google AI API key")
		modelName    = fs.StringLong("model", "", "Model identifier override")
		maxTokens    = fs.IntLong("max-tokens", 0, "Response token budget, 0 = provider default")

		discordToken   = fs.StringLong("discord-token", "", "Discord bot token for run notifications")
		discordChannel = fs.StringLong("discord-channel-id", "", "Discord channel for run notifications")
	)

	err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("TOLKA"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ffyaml.Parse),
		ff.WithConfigAllowMissingFile(),
	)
	if err != nil {
		fmt.Printf("%s\n", ffhelp.Flags(fs))
		return fmt.Errorf("%w: parsing flags: %s", errConfig, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cols, err := parseColumns(*speakerCol, *sourceACol, *sourceBCol, *outputCol)
	if err != nil {
		return fmt.Errorf("%w: %s", errConfig, err)
	}

	store, err := openStore(ctx, *backend, *credentialsFile, *spreadsheetID, *sqlitePath, *databaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := openLLM(ctx, *provider, *anthropicKey, *googleKey, *modelName, *maxTokens)
	if err != nil {
		return err
	}

	title := *worksheet
	if title == "" {
		titles, err := store.ListSheets(ctx)
		if err != nil {
			return fmt.Errorf("listing worksheets: %w", err)
		}
		if title, err = picker.Pick(titles); err != nil {
			return fmt.Errorf("%w: %s", errConfig, err)
		}
	}

	eng := engine.New(client, engine.Config{
		TargetLang:   *targetLang,
		SourceALabel: *sourceALang,
		SourceBLabel: *sourceBLang,
		BasePrompt:   readFileOrEmpty(*basePromptF),
	})
	tracker := rolling.New(*windowSize, *glossaryCap, *targetLang)

	driver := pipeline.New(store, eng, tracker, pipeline.Config{
		Worksheet:      title,
		Columns:        cols,
		StartRow:       *startRow,
		HeaderRows:     *headerRows,
		Limit:          *limit,
		BatchSize:      *batchSize,
		SkipTranslated: *skipTranslated,
		Force:          *force,
		DryRun:         *dryRun,
		Synopsis:       readFileOrEmpty(*synopsisFile),
	}, log)

	sum, err := driver.Run(ctx)
	if err != nil {
		return err
	}

	if *discordToken != "" && *discordChannel != "" {
		notifier, err := notify.New(*discordToken, *discordChannel)
		if err != nil {
			log.Warn("discord notifier unavailable", "error", err)
		} else if err := notifier.RunSummary(title, sum, *dryRun); err != nil {
			log.Warn("discord notification failed", "error", err)
		}
	}

	log.Info("done", "translated", sum.Translated)
	return nil
}

func parseColumns(speaker, sourceA, sourceB, output string) (sheet.ColumnMap, error) {
	var cols sheet.ColumnMap
	var err error
	if cols.Speaker, err = sheet.ParseColumn(speaker); err != nil {
		return cols, fmt.Errorf("speaker column: %w", err)
	}
	if cols.SourceA, err = sheet.ParseColumn(sourceA); err != nil {
		return cols, fmt.Errorf("source A column: %w", err)
	}
	if cols.SourceB, err = sheet.ParseColumn(sourceB); err != nil {
		return cols, fmt.Errorf("source B column: %w", err)
	}
	if cols.Output, err = sheet.ParseColumn(output); err != nil {
		return cols, fmt.Errorf("output column: %w", err)
	}
	return cols, nil
}

func openStore(ctx context.Context, backend, credentialsFile, spreadsheetID, sqlitePath, databaseURL string) (sheet.Store, error) {
	switch backend {
	case "gsheet":
		if credentialsFile == "" || spreadsheetID == "" {
			return nil, fmt.Errorf("%w: gsheet backend needs --credentials-file and --spreadsheet-id", errConfig)
		}
		return gsheet.New(ctx, credentialsFile, spreadsheetID)
	case "sqlite":
		if sqlitePath == "" {
			return nil, fmt.Errorf("%w: sqlite backend needs --sqlite-path", errConfig)
		}
		return sqlite.New(ctx, sqlitePath)
	case "postgres":
		if databaseURL == "" {
			return nil, fmt.Errorf("%w: postgres backend needs --database-url", errConfig)
		}
		return postgres.New(ctx, databaseURL)
	default:
		return nil, fmt.Errorf("%w: unknown sheet backend %q", errConfig, backend)
	}
}

func openLLM(ctx context.Context, provider, anthropicKey, googleKey, model string, maxTokens int) (llm.Client, error) {
	switch provider {
	case "anthropic":
		if anthropicKey == "" {
			anthropicKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if anthropicKey == "" {
			return nil, fmt.Errorf("%w: anthropic API key not provided", errConfig)
		}
		return anthropic.NewClient(anthropicKey, anthropic.Model(model), int64(maxTokens)), nil
	case "google":
		if googleKey == "" {
			googleKey = os.Getenv("GEMINI_API_KEY")
		}
		if googleKey == "" {
			return nil, fmt.Errorf("%w: google API key not provided", errConfig)
		}
		return google.NewClient(ctx, googleKey, google.Model(model))
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", errConfig, provider)
	}
}

func readFileOrEmpty(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
