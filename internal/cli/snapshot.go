package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"callput-engine/internal/logging"
	"callput-engine/internal/market"
	"callput-engine/internal/store"
	"callput-engine/pkg/utils"
)

func newSnapshotCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Import and inspect market-data snapshots",
		Long: `A snapshot is one market-data feed document: option marks, implied vols and
greeks per instrument plus the futures price of each underlying.`,
	}

	cmd.AddCommand(newSnapshotImportCmd(app))
	cmd.AddCommand(newSnapshotShowCmd(app))
	cmd.AddCommand(newSnapshotPruneCmd(app))

	return cmd
}

func newSnapshotImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a market feed JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := app.context(cmd, "snapshot.import")
			logger := logging.FromContext(ctx)

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			snap, err := market.LoadSnapshot(f, app.Registry)
			if err != nil {
				return err
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			id, err := st.SaveSnapshot(ctx, snap)
			if err != nil {
				return err
			}
			if err := store.NewFreshnessTracker(st, nil).MarkSynced(store.SyncTypeSnapshot); err != nil {
				logger.Warn().Err(err).Msg("Failed to record snapshot sync")
			}
			logging.LogImport(logger, "snapshot", snap.Len())

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"id":      id,
					"as_of":   snap.AsOf,
					"options": snap.Len(),
				})
			}
			output.Success("✓ Imported snapshot #%d with %d options", id, snap.Len())
			return nil
		},
	}
}

func newSnapshotShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the latest stored snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := app.context(cmd, "snapshot.show")

			st, err := app.Store()
			if err != nil {
				return err
			}
			snap, err := st.LatestSnapshot(ctx, app.Registry)
			if err != nil {
				return fmt.Errorf("loading snapshot: %w", err)
			}

			entries := snap.Entries()
			if ticker, _ := cmd.Flags().GetString("asset"); ticker != "" {
				filtered := entries[:0]
				for _, e := range entries {
					in, err := market.ParseInstrument(e.Instrument)
					if err == nil && strings.EqualFold(in.Ticker, ticker) {
						filtered = append(filtered, e)
					}
				}
				entries = filtered
			}
			if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"as_of":    snap.AsOf,
					"forwards": snap.Forwards(),
					"options":  entries,
				})
			}

			freshness := store.NewFreshnessTracker(st, nil).Freshness(store.SyncTypeSnapshot)
			if freshness.IsFresh {
				output.Dim("%s", store.FormatFreshness(freshness))
			} else {
				output.Warning("%s", store.FormatFreshness(freshness))
			}
			output.Printf("As of %s\n\n", FormatExpiry(snap.AsOf))

			forwards := snap.Forwards()
			indexes := make([]int, 0, len(forwards))
			for idx := range forwards {
				indexes = append(indexes, int(idx))
			}
			sort.Ints(indexes)
			for _, idx := range indexes {
				output.Printf("  %-5s %s\n", app.Registry.Ticker(uint16(idx)), utils.FormatUSD(forwards[uint16(idx)]))
			}
			output.Println()

			table := NewTable(output, "Instrument", "Mark", "IV", "Delta", "Avail")
			for _, e := range entries {
				avail := output.Green("yes")
				if !e.IsOptionAvailable {
					avail = output.DimText("no")
				}
				table.AddRow(
					e.Instrument,
					utils.FormatUSD(e.MarkPrice),
					FormatIV(e.MarkIV),
					fmt.Sprintf("%.4f", e.Delta),
					avail,
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().String("asset", "", "show only one underlying")
	cmd.Flags().Int("limit", 0, "maximum rows (0 for all)")

	return cmd
}

func newSnapshotPruneCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := app.context(cmd, "snapshot.prune")

			keep, _ := cmd.Flags().GetInt("keep")
			if keep < 1 {
				return fmt.Errorf("--keep must be at least 1")
			}
			st, err := app.Store()
			if err != nil {
				return err
			}
			n, err := st.PruneSnapshots(ctx, keep)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int64{"deleted": n})
			}
			output.Success("✓ Deleted %d snapshots, kept the latest %d", n, keep)
			return nil
		},
	}

	cmd.Flags().Int("keep", 5, "number of recent snapshots to keep")

	return cmd
}
