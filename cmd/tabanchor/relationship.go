package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/tabanchor/internal/models"
)

var relationshipCmd = &cobra.Command{
	Use:     "relationship",
	Aliases: []string{"rel"},
	Short:   "Author and manage anchor -> value relationships",
}

var relDefineCmd = &cobra.Command{
	Use:   "define <pdf>",
	Short: "Define a relationship from an anchor cell and a value cell of an extracted table",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelDefine,
}

var relSaveCmd = &cobra.Command{
	Use:   "save <id>",
	Short: "Promote a draft relationship to SAVED",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := application.RelationshipService.Save(cmd.Context(), args[0])
		if err != nil {
			return fail(err, "Failed to save relationship")
		}
		return printRelationship(cmd, cfg)
	},
}

var relArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Archive a saved relationship",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := application.RelationshipService.Archive(cmd.Context(), args[0])
		if err != nil {
			return fail(err, "Failed to archive relationship")
		}
		return printRelationship(cmd, cfg)
	},
}

var relReviseCmd = &cobra.Command{
	Use:   "revise <id>",
	Short: "Create a new draft revision of a relationship",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := application.RelationshipService.Revise(cmd.Context(), args[0])
		if err != nil {
			return fail(err, "Failed to revise relationship")
		}
		return printRelationship(cmd, cfg)
	},
}

var relDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Permanently delete a relationship",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.RelationshipService.Delete(cmd.Context(), args[0]); err != nil {
			return fail(err, "Failed to delete relationship")
		}
		logger.Info().Str("relationship_id", args[0]).Msg("Relationship deleted")
		return nil
	},
}

var relListCmd = &cobra.Command{
	Use:   "list",
	Short: "List relationships",
	Args:  cobra.NoArgs,
	RunE:  runRelList,
}

var relExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all relationships as JSON or YAML",
	Args:  cobra.NoArgs,
	RunE:  runRelExport,
}

var relImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import relationships from a JSON or YAML export",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelImport,
}

var relStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise stored relationships",
	Args:  cobra.NoArgs,
	RunE:  runRelStats,
}

var (
	defBackend     string
	defPage        int
	defTable       string
	defAnchor      string
	defValue       string
	defKey         string
	defPattern     string
	defRegex       bool
	defTemplate    string
	defDescription string
	defSave        bool

	listState    string
	listTemplate string
	listFormat   string

	exportFormat string
	exportOutput string
	importFormat string

	statsRecent time.Duration
	statsFormat string
)

func init() {
	relDefineCmd.Flags().StringVarP(&defBackend, "backend", "b", "", "Backend used to extract the source table")
	relDefineCmd.Flags().IntVar(&defPage, "page", 1, "Page of the source table (1-based)")
	relDefineCmd.Flags().StringVar(&defTable, "table", "1", "Table id, or 1-based index among the page's tables")
	relDefineCmd.Flags().StringVar(&defAnchor, "anchor", "", "Anchor cell as row,col (0-based)")
	relDefineCmd.Flags().StringVar(&defValue, "value", "", "Value cell as row,col (0-based)")
	relDefineCmd.Flags().StringVar(&defKey, "key", "", "Key name of the extracted value")
	relDefineCmd.Flags().StringVar(&defPattern, "pattern", "", "Anchor pattern (default: anchor cell content)")
	relDefineCmd.Flags().BoolVar(&defRegex, "regex", false, "Treat --pattern as a regular expression")
	relDefineCmd.Flags().StringVar(&defTemplate, "template", "", "File template the relationship belongs to")
	relDefineCmd.Flags().StringVar(&defDescription, "description", "", "Free-text description")
	relDefineCmd.Flags().BoolVar(&defSave, "save", false, "Save immediately instead of leaving a draft")
	_ = relDefineCmd.MarkFlagRequired("anchor")
	_ = relDefineCmd.MarkFlagRequired("value")
	_ = relDefineCmd.MarkFlagRequired("key")

	relListCmd.Flags().StringVar(&listState, "state", "", "Filter by state: DRAFT, SAVED or ARCHIVED")
	relListCmd.Flags().StringVar(&listTemplate, "template", "", "Saved relationships of one file template")
	relListCmd.Flags().StringVarP(&listFormat, "format", "f", formatText, "Output format: text, json or yaml")

	relExportCmd.Flags().StringVarP(&exportFormat, "format", "f", formatJSON, "Export format: json or yaml")
	relExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write export to file instead of stdout")

	relStatsCmd.Flags().DurationVar(&statsRecent, "recent", 7*24*time.Hour, "Window counted as recently created")
	relStatsCmd.Flags().StringVarP(&statsFormat, "format", "f", formatText, "Output format: text, json or yaml")

	relImportCmd.Flags().StringVarP(&importFormat, "format", "f", "", "Import format: json or yaml (default: from file extension)")

	relationshipCmd.AddCommand(
		relDefineCmd,
		relSaveCmd,
		relArchiveCmd,
		relReviseCmd,
		relDeleteCmd,
		relListCmd,
		relExportCmd,
		relImportCmd,
		relStatsCmd,
	)
}

func runRelDefine(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	anchor, err := parseCellRef(defAnchor)
	if err != nil {
		return err
	}
	value, err := parseCellRef(defValue)
	if err != nil {
		return err
	}

	backend, err := application.ResolveBackend(ctx, defBackend, models.Requirements{})
	if err != nil {
		return fail(err, "Failed to select backend")
	}
	result, err := application.ExtractionService.Extract(ctx, args[0], backend, nil)
	if err != nil {
		return fail(err, "Extraction failed")
	}

	table, err := selectTable(result, defPage, defTable)
	if err != nil {
		return err
	}

	opts := models.DefineOptions{
		Pattern:      defPattern,
		FileTemplate: defTemplate,
		Description:  defDescription,
	}
	if defRegex {
		opts.PatternType = models.PatternRegex
	}

	cfg, err := application.RelationshipService.Define(ctx, table, anchor, value, defKey, opts)
	if err != nil {
		return fail(err, "Failed to define relationship")
	}
	logger.Info().
		Str("relationship_id", cfg.RelationshipID).
		Str("key", cfg.KeyName).
		Str("position", string(cfg.ValuePosition.RelativePosition)).
		Int("offset", cfg.ValuePosition.Offset).
		Msg("Relationship defined")

	if defSave {
		if cfg, err = application.RelationshipService.Save(ctx, cfg.RelationshipID); err != nil {
			return fail(err, "Failed to save relationship")
		}
	}
	return printRelationship(cmd, cfg)
}

func runRelList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var (
		cfgs []*models.RelationshipConfig
		err  error
	)
	if listTemplate != "" {
		cfgs, err = application.RelationshipService.ListByTemplate(ctx, listTemplate)
	} else {
		cfgs, err = application.RelationshipService.List(ctx, models.RelationshipState(strings.ToUpper(listState)))
	}
	if err != nil {
		return fail(err, "Failed to list relationships")
	}

	if f := strings.ToLower(listFormat); f != formatText && f != "" {
		content, err := encode(cfgs, f)
		if err != nil {
			return err
		}
		return writeOutput(cmd, "", content)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKEY\tANCHOR\tPOSITION\tTEMPLATE\tSTATE\tVERSION")
	for _, c := range cfgs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s+%d\t%s\t%s\t%d\n",
			c.RelationshipID, c.KeyName, c.AnchorPattern,
			c.ValuePosition.RelativePosition, c.ValuePosition.Offset,
			c.FileTemplate, c.State, c.Version)
	}
	return w.Flush()
}

func runRelExport(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("creating %s: %w", exportOutput, err)
		}
		defer f.Close()
		out = f
	}

	n, err := application.RelationshipService.Export(cmd.Context(), out, exportFormat)
	if err != nil {
		return fail(err, "Failed to export relationships")
	}
	logger.Info().Int("count", n).Str("format", exportFormat).Msg("Relationships exported")
	return nil
}

func runRelImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	format := importFormat
	if format == "" {
		format = formatJSON
		if lower := strings.ToLower(path); strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
			format = formatYAML
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	report, err := application.RelationshipService.Import(cmd.Context(), f, format)
	if err != nil {
		return fail(err, "Failed to import relationships")
	}
	for _, e := range report.Errors {
		logger.Warn().Str("error", e).Msg("Relationship not imported")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d, failed %d\n", report.Imported, report.Skipped, len(report.Errors))
	return nil
}

func runRelStats(cmd *cobra.Command, args []string) error {
	stats, err := application.RelationshipService.Statistics(cmd.Context(), time.Now().Add(-statsRecent))
	if err != nil {
		return fail(err, "Failed to compute relationship statistics")
	}

	if f := strings.ToLower(statsFormat); f != formatText && f != "" {
		content, err := encode(stats, f)
		if err != nil {
			return err
		}
		return writeOutput(cmd, "", content)
	}
	return writeOutput(cmd, "", []byte(statsText(stats, statsRecent)))
}

func statsText(stats *models.RelationshipStats, recent time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "total %d, created in the last %s: %d\n", stats.Total, recent, stats.Recent)
	for _, state := range []models.RelationshipState{models.StateDraft, models.StateSaved, models.StateArchived} {
		fmt.Fprintf(&b, "  %-9s %d\n", state, stats.ByState[state])
	}

	templates := make([]string, 0, len(stats.ByTemplate))
	for name := range stats.ByTemplate {
		templates = append(templates, name)
	}
	sort.Strings(templates)
	if len(templates) > 0 {
		b.WriteString("templates:\n")
		for _, name := range templates {
			fmt.Fprintf(&b, "  %s %d\n", name, stats.ByTemplate[name])
		}
	}

	if len(stats.TopAnchors) > 0 {
		b.WriteString("top anchors:\n")
		for _, a := range stats.TopAnchors {
			fmt.Fprintf(&b, "  %q %d\n", a.Pattern, a.Count)
		}
		fmt.Fprintf(&b, "average per anchor %.2f\n", stats.AveragePerAnchor)
	}
	return b.String()
}

func printRelationship(cmd *cobra.Command, cfg *models.RelationshipConfig) error {
	content, err := encode(cfg, formatYAML)
	if err != nil {
		return err
	}
	return writeOutput(cmd, "", content)
}
