package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ternarybob/tabanchor/internal/models"
	"github.com/ternarybob/tabanchor/internal/services/selector"
)

var compareCmd = &cobra.Command{
	Use:   "compare <pdf>",
	Short: "Run several backends over a PDF and compare their tables",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompare,
}

var (
	compareBackends []string
	compareFormat   string
	compareOutput   string
)

func init() {
	compareCmd.Flags().StringSliceVar(&compareBackends, "backends", nil, "Backends to compare (default: all registered)")
	compareCmd.Flags().StringVarP(&compareFormat, "format", "f", formatText, "Output format: text or json")
	compareCmd.Flags().StringVarP(&compareOutput, "output", "o", "", "Write output to file instead of stdout")
}

// comparison is the machine-readable compare output
type comparison struct {
	Results      map[models.BackendID]*models.ExtractionResult `json:"results"`
	Errors       map[models.BackendID]string                   `json:"errors,omitempty"`
	Capabilities []selector.CapabilityRow                      `json:"capabilities"`
}

func runCompare(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	var ids []models.BackendID
	for _, b := range compareBackends {
		ids = append(ids, models.BackendID(strings.ToLower(strings.TrimSpace(b))))
	}
	if len(ids) == 0 {
		for _, a := range application.Registry.Adapters() {
			ids = append(ids, a.ID())
		}
	}

	results, failures := application.ExtractionService.Compare(ctx, path, ids)

	avail, err := application.Selector.Availability(ctx)
	if err != nil {
		return fail(err, "Failed to check backend availability")
	}

	out := comparison{
		Results:      results,
		Errors:       make(map[models.BackendID]string, len(failures)),
		Capabilities: selector.CapabilityMatrix(avail),
	}
	for id, ferr := range failures {
		out.Errors[id] = ferr.Error()
	}

	var content []byte
	switch strings.ToLower(compareFormat) {
	case formatJSON:
		if content, err = encode(out, formatJSON); err != nil {
			return err
		}
	case formatText, "":
		content = []byte(compareText(ids, out))
	default:
		return fmt.Errorf("unsupported format %q", compareFormat)
	}

	if err := writeOutput(cmd, compareOutput, content); err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("all %d backend(s) failed", len(ids))
	}
	return nil
}

func compareText(ids []models.BackendID, out comparison) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%-10s %7s %7s %8s %10s %8s\n", "BACKEND", "TABLES", "SKIPPED", "SECONDS", "CONFIDENCE", "STATUS")
	seen := make(map[models.BackendID]bool)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		r, ok := out.Results[id]
		if !ok {
			fmt.Fprintf(&b, "%-10s %7s %7s %8s %10s %8s  %s\n", id, "-", "-", "-", "-", "failed", out.Errors[id])
			continue
		}
		status := "ok"
		if r.Partial {
			status = "partial"
		}
		fmt.Fprintf(&b, "%-10s %7d %7d %8.2f %10.2f %8s\n",
			id, r.TotalTables, r.SkippedTables, r.ProcessingTimeSeconds, meanConfidence(r), status)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "%-10s %-9s %-7s %-7s %-8s %-13s %s\n", "BACKEND", "ACCURACY", "SPEED", "KOREAN", "COMPLEX", "GRID LINES", "AVAILABLE")
	rows := append([]selector.CapabilityRow(nil), out.Capabilities...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Backend < rows[j].Backend })
	for _, c := range rows {
		fmt.Fprintf(&b, "%-10s %-9s %-7s %-7s %-8s %-13s %t\n",
			c.Backend, c.Accuracy, c.Speed, c.Korean, c.Complex, c.GridLines, c.Available)
	}
	return b.String()
}

func meanConfidence(r *models.ExtractionResult) float64 {
	tables := r.AllTables()
	if len(tables) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range tables {
		sum += t.Metadata.Confidence
	}
	return sum / float64(len(tables))
}
