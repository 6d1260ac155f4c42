package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"remoteqna/internal/ssh"
)

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var (
		file        string
		timeout     time.Duration
		askPassword bool
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "query [profile] [relevance]",
		Short: "Connect, run one QnA query and disconnect",
		Long:  "Connect, run one QnA query and disconnect. Without a profile the last used one is taken.",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, rest := splitQueryArgs(args, file)
			query, err := queryText(rest, file)
			if err != nil {
				return err
			}
			profile, err := opts.profileName(name)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := opts.connect(ctx, profile, askPassword); err != nil {
				return err
			}
			defer opts.service.Disconnect()

			res, err := opts.execute(ctx, query, timeout)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(cmd.OutOrStdout(), query, res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the query from a file")
	cmd.Flags().DurationVar(&timeout, "timeout", ssh.DefaultCommandTimeout, "per-command timeout")
	cmd.Flags().BoolVarP(&askPassword, "password", "p", false, "prompt for the password instead of using the saved one")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func newTestPathCmd(opts *rootOptions) *cobra.Command {
	var askPassword bool
	cmd := &cobra.Command{
		Use:   "test-path [profile]",
		Short: "Check that the profile's QnA tool exists on the remote host",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := opts.profileName(firstArg(args))
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := opts.connect(ctx, profile, askPassword); err != nil {
				return err
			}
			defer opts.service.Disconnect()

			var path string
			v, err := opts.runBlocking(ctx, "test", func(ctx context.Context) (any, error) {
				found, p, err := opts.service.TestToolPath(ctx)
				path = p
				return found, err
			})
			if err != nil {
				return err
			}
			if found, _ := v.(bool); found {
				fmt.Fprintf(cmd.OutOrStdout(), "QnA found at %s\n", path)
				return nil
			}
			return fmt.Errorf("QnA not found at %s", path)
		},
	}
	cmd.Flags().BoolVarP(&askPassword, "password", "p", false, "prompt for the password instead of using the saved one")
	return cmd
}

// execute runs query on the task runner.
func (o *rootOptions) execute(ctx context.Context, query string, timeout time.Duration) (*ssh.Result, error) {
	v, err := o.runBlocking(ctx, "execute", func(ctx context.Context) (any, error) {
		return o.service.RunQuery(ctx, query, timeout)
	})
	if err != nil {
		return nil, err
	}
	res, _ := v.(*ssh.Result)
	if res == nil {
		return nil, fmt.Errorf("no result")
	}
	return res, nil
}

// splitQueryArgs separates the optional profile from the query argument.
// A single argument is the query unless the query comes from --file.
func splitQueryArgs(args []string, file string) (string, []string) {
	switch {
	case len(args) == 2:
		return args[0], args[1:]
	case len(args) == 1 && file != "":
		return args[0], nil
	}
	return "", args
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func queryText(args []string, file string) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", fmt.Errorf("give the query as an argument or with --file, not both")
	case file == "-":
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	case len(args) == 1:
		return args[0], nil
	}
	return "", fmt.Errorf("no query given")
}

func printResult(w io.Writer, query string, res *ssh.Result) {
	fmt.Fprintf(w, "Query: %s\n", query)
	fmt.Fprintf(w, "Exit Code: %d\n\n", res.ExitCode)
	if res.Output != "" {
		fmt.Fprintf(w, "Output:\n%s\n", strings.TrimRight(res.Output, "\r\n"))
	}
	if res.Error != "" {
		fmt.Fprintf(w, "Errors:\n%s\n", strings.TrimRight(res.Error, "\r\n"))
	}
}
