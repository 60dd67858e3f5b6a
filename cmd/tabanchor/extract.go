package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ternarybob/tabanchor/internal/models"
	"github.com/ternarybob/tabanchor/internal/services/selector"
)

var extractCmd = &cobra.Command{
	Use:   "extract <pdf>",
	Short: "Extract and normalize the tables of a PDF",
	Long: `Runs one backend over a PDF and prints the normalized tables.
Use --backend auto to let the selector pick a backend from the requirement flags.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

var (
	extractBackend string
	extractOpts    map[string]string
	extractFormat  string
	extractOutput  string
	extractReqs    requirementFlags
)

func init() {
	extractCmd.Flags().StringVarP(&extractBackend, "backend", "b", "", "Backend id (plumber, tabula, lattice) or auto")
	extractCmd.Flags().StringToStringVar(&extractOpts, "opt", nil, "Backend option key=value (repeatable)")
	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", formatText, "Output format: text, json, csv, markdown or pdf")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "Write output to file instead of stdout")
	extractReqs.register(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	backend, err := application.ResolveBackend(ctx, extractBackend, extractReqs.requirements())
	if err != nil {
		return fail(err, "Failed to select backend")
	}

	result, err := application.ExtractionService.Extract(ctx, path, backend, backendOptions(extractOpts))
	if err != nil && result == nil {
		return fail(err, "Extraction failed")
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Extraction incomplete, writing partial result")
	}

	content, encErr := renderResult(result, nil, extractFormat)
	if encErr != nil {
		return encErr
	}
	if werr := writeOutput(cmd, extractOutput, content); werr != nil {
		return werr
	}
	return err
}

// renderResult formats an extraction result with optional applied values
func renderResult(result *models.ExtractionResult, applied []models.AppliedExtraction, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case formatText, "":
		return []byte(textSummary(result, applied)), nil
	case formatMarkdown, "md":
		return []byte(application.ReportService.RenderMarkdown(result, applied)), nil
	case formatPDF:
		return application.ReportService.RenderPDF(result, applied)
	case formatCSV:
		return application.ReportService.RenderCSV(result, applied)
	case formatJSON:
		if applied != nil {
			return encode(struct {
				Result  *models.ExtractionResult   `json:"result"`
				Applied []models.AppliedExtraction `json:"applied"`
			}{result, applied}, formatJSON)
		}
		return encode(result, formatJSON)
	case formatYAML, "yml":
		if applied == nil {
			return nil, errors.New("yaml output is available for applied values only")
		}
		return encode(applied, formatYAML)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

func textSummary(result *models.ExtractionResult, applied []models.AppliedExtraction) string {
	var b strings.Builder
	fmt.Fprintln(&b, result.Summary())
	if desc := selector.Description(result.Backend); desc != "" {
		fmt.Fprintf(&b, "  %s: %s\n", result.Backend, desc)
	}
	for _, t := range result.AllTables() {
		fmt.Fprintf(&b, "  page %d  %s  %dx%d  confidence %.2f  %s\n",
			t.PageNumber, t.TableID, t.Grid.Rows, t.Grid.Cols, t.Metadata.Confidence, t.Metadata.Position)
		if t.HasHeader() {
			fmt.Fprintf(&b, "    headers: %s\n", strings.Join(t.Headers, " | "))
		}
	}
	for _, a := range applied {
		fmt.Fprintf(&b, "%s = %q  (%s, confidence %.2f)\n", a.KeyName, a.Value, a.Status, a.Confidence)
	}
	return b.String()
}

// requirementFlags are the document characteristics fed to the selector
type requirementFlags struct {
	korean, accuracy, complex, large, grid, speed bool
}

func (r *requirementFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&r.korean, "korean-text", false, "Document contains Korean text")
	cmd.Flags().BoolVar(&r.accuracy, "accuracy", false, "Prioritize accuracy")
	cmd.Flags().BoolVar(&r.complex, "complex-layout", false, "Document has a complex layout")
	cmd.Flags().BoolVar(&r.large, "large-document", false, "Document is large")
	cmd.Flags().BoolVar(&r.grid, "grid-lines", false, "Tables have drawn grid lines")
	cmd.Flags().BoolVar(&r.speed, "speed", false, "Prioritize speed")
}

func (r *requirementFlags) requirements() models.Requirements {
	return selector.ParseRequirements(map[string]any{
		"korean_text":       r.korean,
		"accuracy_priority": r.accuracy,
		"complex_layout":    r.complex,
		"large_document":    r.large,
		"has_grid_lines":    r.grid,
		"speed_priority":    r.speed,
	})
}
