package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/migrate-cli/internal/refindex"
	"github.com/sells-group/migrate-cli/internal/store"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the reference index",
	Long:  "Commands for importing and inspecting the asset, entry and taxonomy feeds used to resolve references.",
}

// -- index load --

var indexLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Import the index feed files into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = cfg.Index.Dir
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := importFeeds(ctx, st, dir)
		if err != nil {
			return err
		}
		formatIndexStats(os.Stdout, stats)
		return nil
	},
}

// -- index stats --

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show table sizes of the stored index",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ix, err := refindex.LoadStore(ctx, st)
		if err != nil {
			return eris.Wrap(err, "index stats")
		}
		formatIndexStats(os.Stdout, ix.Stats())
		return nil
	},
}

func init() {
	indexLoadCmd.Flags().String("dir", "", "index directory with assets.json, taxonomies.json and references/<locale>.json (defaults to index.dir)")

	indexCmd.AddCommand(indexLoadCmd)
	indexCmd.AddCommand(indexStatsCmd)
	rootCmd.AddCommand(indexCmd)
}

// importFeeds validates the feed files in dir and writes them to st.
func importFeeds(ctx context.Context, st store.Store, dir string) (refindex.Stats, error) {
	feeds, err := refindex.ReadDir(dir)
	if err != nil {
		return refindex.Stats{}, err
	}
	ix, err := feeds.Build()
	if err != nil {
		return refindex.Stats{}, err
	}

	if err := st.PutAssets(ctx, feeds.Assets); err != nil {
		return refindex.Stats{}, eris.Wrap(err, "index load: assets")
	}
	if err := st.PutEntryRefs(ctx, feeds.Entries); err != nil {
		return refindex.Stats{}, eris.Wrap(err, "index load: entries")
	}
	if err := st.PutTerms(ctx, feeds.Terms); err != nil {
		return refindex.Stats{}, eris.Wrap(err, "index load: terms")
	}

	stats := ix.Stats()
	zap.L().Info("index imported",
		zap.String("dir", dir),
		zap.Int("assets", stats.Assets),
		zap.Int("terms", stats.Terms),
	)
	return stats, nil
}

// formatIndexStats writes index table sizes to w.
func formatIndexStats(out io.Writer, s refindex.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Assets:\t%d\n", s.Assets)
	_, _ = fmt.Fprintf(w, "Terms:\t%d\n", s.Terms)
	for _, loc := range sortedLocales(s.Entries) {
		_, _ = fmt.Fprintf(w, "Entries (%s):\t%d\n", loc, s.Entries[loc])
	}
	_ = w.Flush()
}
