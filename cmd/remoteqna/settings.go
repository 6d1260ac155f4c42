package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change application settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List settings and their values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, k := range opts.settings.Keys() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", k, opts.settings.Get(k))
				if d := opts.settings.Description(k); d != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", d)
				}
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a setting (booleans accept true/false)",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			var value any = args[1]
			switch args[1] {
			case "true":
				value = true
			case "false":
				value = false
			}
			return opts.settings.Upsert(args[0], value)
		},
	})
	return cmd
}
