package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/migrate-cli/internal/config"
	"github.com/sells-group/migrate-cli/internal/fetcher"
	"github.com/sells-group/migrate-cli/internal/output"
	"github.com/sells-group/migrate-cli/internal/pipeline"
	"github.com/sells-group/migrate-cli/internal/refindex"
	"github.com/sells-group/migrate-cli/internal/resilience"
	"github.com/sells-group/migrate-cli/internal/schema"
	"github.com/sells-group/migrate-cli/internal/store"
)

// runOptions are the inputs of one migration batch.
type runOptions struct {
	Input       string
	Fields      string
	Schema      string
	ContentType string
	OutputDir   string
	Sheet       string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Migrate one batch of legacy records",
	Long:  "Reads a JSON array of legacy records, assembles destination entries per locale, records the run in the store and writes one document per destination locale.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var o runOptions
		o.Input, _ = cmd.Flags().GetString("input")
		o.Fields, _ = cmd.Flags().GetString("fields")
		o.Schema, _ = cmd.Flags().GetString("schema")
		o.ContentType, _ = cmd.Flags().GetString("content-type")
		o.OutputDir, _ = cmd.Flags().GetString("output")
		o.Sheet, _ = cmd.Flags().GetString("sheet")

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := runMigration(ctx, cfg, st, o)
		if res != nil {
			fmt.Fprintf(os.Stdout, "run %s: %d records, %d entries, %d skipped\n",
				res.RunID, res.Stats.Records, res.Stats.Assembled, res.Stats.Skipped)
		}
		return err
	},
}

func init() {
	runCmd.Flags().String("input", "", "path, http(s) or ftp URL of the record export (JSON array or .xlsx)")
	runCmd.Flags().String("fields", "", "source field configuration file (yaml or json)")
	runCmd.Flags().String("schema", "", "destination content type schema file (yaml or json)")
	runCmd.Flags().String("content-type", "", "content type uid (defaults to the records' type)")
	runCmd.Flags().String("output", "", "output directory (defaults to migrate.output_dir)")
	runCmd.Flags().String("sheet", "", "worksheet name for .xlsx input (defaults to the first sheet)")
	_ = runCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(runCmd)
}

// runMigration executes one batch end to end.
func runMigration(ctx context.Context, c *config.Config, st store.Store, o runOptions) (*pipeline.BatchResult, error) {
	log := zap.L().With(zap.String("component", "run"))

	ix, err := loadIndex(ctx, c, st)
	if err != nil {
		return nil, err
	}

	var fields *schema.FieldRegistry
	if o.Fields != "" {
		if fields, err = schema.LoadFieldConfig(o.Fields); err != nil {
			return nil, err
		}
	}
	var schemas *schema.Registry
	if o.Schema != "" {
		cts, err := schema.LoadContentTypes(o.Schema)
		if err != nil {
			return nil, err
		}
		schemas = schema.NewRegistry(cts)
	}

	retry := resilience.WithAttempts(c.Migrate.RetryAttempts)
	batch, err := fetcher.ReadSource(ctx, o.Input, fetcher.Options{
		Retry: retry,
		Sheet: fetcher.XLSXOptions{SheetName: o.Sheet},
	}, c.Migrate.LocaleKey, c.Locale.NoLanguage)
	if err != nil {
		return nil, err
	}

	contentType := o.ContentType
	if contentType == "" {
		contentType = inferContentType(batch, c.Migrate.TypeKey)
	}
	if contentType == "" {
		return nil, eris.New("run: no content type given and none found in records")
	}
	log.Info("starting batch",
		zap.String("content_type", contentType),
		zap.String("input", o.Input),
		zap.Int("locales", len(batch)),
	)

	assembler := pipeline.NewAssembler(ix, fields, schemas, pipeline.Options{
		IDKey:     c.Migrate.IDKey,
		TitleKey:  c.Migrate.TitleKey,
		TypeKey:   c.Migrate.TypeKey,
		LocaleKey: c.Migrate.LocaleKey,
		UIDAffix:  c.Migrate.UIDAffix,
	})
	runner := pipeline.NewRunner(assembler, st, pipeline.RunnerConfig{
		Concurrency:      c.Migrate.Concurrency,
		RecordsPerSecond: c.Migrate.RecordsPerSecond,
		Sentinels:        c.Locale.Sentinels(),
		Mapper:           c.Locale.Mapper(),
		Retry:            retry,
	})

	res, runErr := runner.Run(ctx, contentType, pipeline.Batch(batch))
	if res == nil {
		return nil, runErr
	}

	outDir := o.OutputDir
	if outDir == "" {
		outDir = c.Migrate.OutputDir
	}
	if _, err := output.WriteGroups(outDir, contentType, res.Groups); err != nil {
		return res, err
	}
	return res, runErr
}

// loadIndex builds the reference index from the configured source.
func loadIndex(ctx context.Context, c *config.Config, st store.Store) (*refindex.Index, error) {
	switch c.Index.Source {
	case "files":
		return refindex.LoadDir(c.Index.Dir)
	default:
		return refindex.LoadStore(ctx, st)
	}
}

// inferContentType returns the type of the first record, in locale order,
// that carries one.
func inferContentType(batch fetcher.Batch, typeKey string) string {
	locales := make([]string, 0, len(batch))
	for loc := range batch {
		locales = append(locales, loc)
	}
	sort.Strings(locales)
	for _, loc := range locales {
		for _, rec := range batch[loc] {
			if t := rec.String(typeKey); t != "" {
				return t
			}
		}
	}
	return ""
}
