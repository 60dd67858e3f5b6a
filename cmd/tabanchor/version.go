package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/tabanchor/internal/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// No config, storage or banner needed
	PersistentPreRunE:  func(cmd *cobra.Command, args []string) error { return nil },
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "TabAnchor version %s\n", common.GetFullVersion())
	},
}
