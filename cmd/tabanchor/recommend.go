package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend backends for a document's characteristics",
	Args:  cobra.NoArgs,
	RunE:  runRecommend,
}

var (
	recommendReqs    requirementFlags
	recommendFormat  string
	recommendRefresh bool
)

func init() {
	recommendReqs.register(recommendCmd)
	recommendCmd.Flags().StringVarP(&recommendFormat, "format", "f", formatText, "Output format: text, json or yaml")
	recommendCmd.Flags().BoolVar(&recommendRefresh, "refresh", false, "Recheck backend availability")
}

func runRecommend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if recommendRefresh {
		if _, err := application.Availability.Refresh(ctx); err != nil {
			return fail(err, "Failed to refresh backend availability")
		}
	}

	recs, err := application.Selector.Recommend(ctx, recommendReqs.requirements())
	if err != nil {
		return fail(err, "Failed to rank backends")
	}

	switch strings.ToLower(recommendFormat) {
	case formatJSON, formatYAML, "yml":
		content, err := encode(recs, recommendFormat)
		if err != nil {
			return err
		}
		return writeOutput(cmd, "", content)
	case formatText, "":
	default:
		return fmt.Errorf("unsupported format %q", recommendFormat)
	}

	var b strings.Builder
	if len(recs) == 0 {
		b.WriteString("No backend is available.\n")
	}
	for i, r := range recs {
		fmt.Fprintf(&b, "%d. %s (score %d)\n   %s\n   %s\n", i+1, r.Backend, r.Score, r.Description, r.Justification)
	}
	return writeOutput(cmd, "", []byte(b.String()))
}
