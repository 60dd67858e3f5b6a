package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the extraction cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached extraction result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := application.StorageManager.ExtractionCacheStorage().Clear(cmd.Context())
		if err != nil {
			return fail(err, "Failed to clear extraction cache")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached extraction(s)\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}
