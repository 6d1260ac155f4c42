package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRecentCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show or clear recent queries",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recent queries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for i, q := range opts.service.Recent().List() {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d  %s\n", i+1, q)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget all recent queries",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return opts.service.Recent().Clear()
		},
	})
	return cmd
}
