package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ternarybob/tabanchor/internal/models"
)

var applyCmd = &cobra.Command{
	Use:   "apply <pdf>",
	Short: "Extract a PDF and replay saved relationships against its tables",
	Long: `Extracts the PDF and applies either every SAVED relationship of a file template
(--template) or an explicit list of relationships (--id). Each relationship
yields one key -> value result with a confidence and a status.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

var (
	applyTemplate string
	applyIDs      []string
	applyBackend  string
	applyFormat   string
	applyOutput   string
)

func init() {
	applyCmd.Flags().StringVarP(&applyTemplate, "template", "t", "", "File template whose saved relationships are applied")
	applyCmd.Flags().StringSliceVar(&applyIDs, "id", nil, "Relationship ids to apply (instead of --template)")
	applyCmd.Flags().StringVarP(&applyBackend, "backend", "b", "", "Backend id or auto")
	applyCmd.Flags().StringVarP(&applyFormat, "format", "f", formatText, "Output format: text, json, yaml, csv, markdown or pdf")
	applyCmd.Flags().StringVarP(&applyOutput, "output", "o", "", "Write output to file instead of stdout")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if applyTemplate == "" && len(applyIDs) == 0 {
		return errors.New("either --template or --id is required")
	}

	backend, err := application.ResolveBackend(ctx, applyBackend, models.Requirements{})
	if err != nil {
		return fail(err, "Failed to select backend")
	}

	result, err := application.ExtractionService.Extract(ctx, args[0], backend, nil)
	if err != nil && result == nil {
		return fail(err, "Extraction failed")
	}
	extractErr := err

	var applied []models.AppliedExtraction
	if len(applyIDs) > 0 {
		applied, err = application.RelationshipService.Apply(ctx, applyIDs, result)
	} else {
		applied, err = application.RelationshipService.ApplyTemplate(ctx, applyTemplate, result)
	}
	if err != nil {
		return fail(err, "Failed to apply relationships")
	}
	if applied == nil {
		applied = []models.AppliedExtraction{}
	}

	found := 0
	for _, a := range applied {
		if a.Found() {
			found++
		}
	}
	logger.Info().
		Str("template", applyTemplate).
		Int("relationships", len(applied)).
		Int("found", found).
		Msg("Relationships applied")

	content, err := renderResult(result, applied, applyFormat)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd, applyOutput, content); err != nil {
		return err
	}
	return extractErr
}
