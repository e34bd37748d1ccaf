package commands

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/graph"
	"github.com/pkordes/tripwit/internal/service"
	"github.com/pkordes/tripwit/internal/transfer"
)

// offlineStore is the local graph's store name; nothing is ever committed.
const offlineStore = "offline"

// discardCommitter accepts every transaction without storing it.
type discardCommitter struct{}

func (discardCommitter) Commit(context.Context, domain.Transaction) (int64, error) { return 0, nil }

// loadSnapshot decodes a .tripwit file into a throwaway graph and returns
// the manager owning it with the imported trip.
func loadSnapshot(ctx context.Context, raw []byte) (*service.Manager, transfer.Snapshot, domain.Trip, error) {
	snap, err := transfer.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, transfer.Snapshot{}, domain.Trip{}, err
	}
	m := service.NewManager(graph.New(offlineStore), discardCommitter{}, "cli", service.Options{})
	trip, err := m.ImportSnapshot(ctx, snap)
	if err != nil {
		return nil, transfer.Snapshot{}, domain.Trip{}, err
	}
	return m, snap, trip, nil
}

func addInspect(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Summarize a .tripwit file.",
		Example: `
tripwit inspect Lisbon.tripwit
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			m, snap, trip, err := loadSnapshot(cmd.Context(), raw)
			if err != nil {
				return err
			}
			return writeSummary(cmd.OutOrStdout(), m, snap, trip)
		},
	}
	topLevel.AddCommand(cmd)
}

func writeSummary(out io.Writer, m *service.Manager, snap transfer.Snapshot, trip domain.Trip) error {
	g := m.Graph()
	days := g.Days(trip.ID)
	stops, visited := 0, 0
	for _, d := range days {
		for _, s := range g.Stops(d.ID) {
			stops++
			if s.Visited {
				visited++
			}
		}
	}
	score, err := m.CompletionScore(trip.ID)
	if err != nil {
		return err
	}
	totals, err := m.TotalExpenses(trip.ID)
	if err != nil {
		return err
	}

	dates := "undated"
	if trip.HasCustomDates {
		dates = fmt.Sprintf("%s to %s", trip.StartDate.Format(time.DateOnly), trip.EndDate.Format(time.DateOnly))
	}

	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 80
	tbl.Wrap = true
	row := func(label string, value any) { tbl.AddRow(bold.Sprint(label), value) }
	row("Name", trip.Name)
	row("Destination", trip.Destination)
	row("Dates", dates)
	row("Status", trip.Status)
	row("Schema", fmt.Sprintf("v%d", snap.SchemaVersion))
	row("Days", len(days))
	row("Stops", fmt.Sprintf("%d (%d visited)", stops, visited))
	row("Bookings", len(g.Bookings(trip.ID)))
	row("Expenses", formatTotals(totals))
	row("Planned", fmt.Sprintf("%.0f%%", score*100))

	_, err = fmt.Fprintln(out, tbl)
	return err
}

func formatTotals(totals map[string]float64) string {
	if len(totals) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(totals))
	for _, cur := range slices.Sorted(maps.Keys(totals)) {
		parts = append(parts, fmt.Sprintf("%s %.2f", cur, totals[cur]))
	}
	return strings.Join(parts, ", ")
}

func addConvert(topLevel *cobra.Command) {
	var format string
	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Convert a .tripwit file to CSV or rewrite it at the current schema version.",
		Example: `
tripwit convert Lisbon.tripwit --format csv > lisbon.csv
tripwit convert old.tripwit --format tripwit > upgraded.tripwit
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			m, _, trip, err := loadSnapshot(cmd.Context(), raw)
			if err != nil {
				return err
			}
			switch format {
			case "csv":
				rows, err := m.Export(trip.ID)
				if err != nil {
					return err
				}
				return writeCSV(cmd.OutOrStdout(), rows)
			case "tripwit":
				snap, err := m.ExportSnapshot(trip.ID)
				if err != nil {
					return err
				}
				return transfer.Encode(cmd.OutOrStdout(), snap)
			default:
				return fmt.Errorf("unknown format %q, want csv or tripwit", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "Output format: csv or tripwit.")
	topLevel.AddCommand(cmd)
}

func writeCSV(out io.Writer, rows []domain.ExportRow) error {
	w := csv.NewWriter(out)
	if err := w.Write(domain.ExportColumns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write(r.CSVRecord()); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
