package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"remoteqna/internal/ssh"
	"remoteqna/internal/task"
)

const shellHelp = `Type a relevance expression to evaluate it. Commands:
  :test       check the QnA path on the remote host
  :recent     list recent queries
  :reconnect  reconnect after a timeout or dropped session
  :quit       disconnect and exit`

func newShellCmd(opts *rootOptions) *cobra.Command {
	var (
		timeout     time.Duration
		askPassword bool
	)
	cmd := &cobra.Command{
		Use:   "shell [profile]",
		Short: "Interactive query loop over one SSH session",
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
			fmt.Fprintln(cmd.ErrOrStderr(), shellHelp)
			return runShell(ctx, opts, profile, os.Stdin, cmd.OutOrStdout(), timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", ssh.DefaultCommandTimeout, "per-command timeout")
	cmd.Flags().BoolVarP(&askPassword, "password", "p", false, "prompt for the password instead of using the saved one")
	return cmd
}

// runShell is the foreground loop. Input is read on its own goroutine and
// every remote call goes through the task runner, so the loop only ever
// blocks in select.
func runShell(ctx context.Context, opts *rootOptions, profile string, in io.Reader, out io.Writer, timeout time.Duration) error {
	done := make(chan struct{})
	defer close(done)
	lines := readLines(in, done)

	var pending <-chan task.Outcome
	var pendingQuery string
	eof := false
	prompt := func() { fmt.Fprint(out, "qna> ") }
	prompt()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case o := <-pending:
			pending = nil
			reportOutcome(out, o, pendingQuery)
			if eof {
				return nil
			}
			prompt()
		case line, ok := <-lines:
			if !ok {
				// Let a running action report before leaving.
				lines, eof = nil, true
				if pending == nil {
					fmt.Fprintln(out)
					return nil
				}
				continue
			}
			line = strings.TrimSpace(line)
			if line == "" {
				prompt()
				continue
			}
			if line == ":quit" || line == ":q" {
				return nil
			}
			ch, query, err := startShellAction(ctx, opts, profile, line, timeout, out)
			if err != nil {
				if errors.Is(err, task.ErrBusy) {
					fmt.Fprintln(out, "busy:", err)
				} else {
					fmt.Fprintln(out, err)
				}
				prompt()
				continue
			}
			if ch == nil {
				prompt()
				continue
			}
			pending, pendingQuery = ch, query
		}
	}
}

// readLines scans in on its own goroutine. The goroutine stops once done is
// closed, even if nobody receives the pending line.
func readLines(in io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}

func startShellAction(ctx context.Context, opts *rootOptions, profile, line string, timeout time.Duration, out io.Writer) (<-chan task.Outcome, string, error) {
	switch line {
	case ":help":
		fmt.Fprintln(out, shellHelp)
		return nil, "", nil
	case ":recent":
		for i, q := range opts.service.Recent().List() {
			fmt.Fprintf(out, "%2d  %s\n", i+1, q)
		}
		return nil, "", nil
	case ":test":
		ch, err := opts.runner.Start(ctx, "test", func(ctx context.Context) (any, error) {
			found, path, err := opts.service.TestToolPath(ctx)
			if err != nil {
				return nil, err
			}
			if found {
				return "QnA found at " + path, nil
			}
			return "QnA not found at " + path, nil
		})
		return ch, "", err
	case ":reconnect":
		ch, err := opts.runner.Start(ctx, "connect", func(ctx context.Context) (any, error) {
			if err := opts.service.Reconnect(ctx, profile); err != nil {
				return nil, err
			}
			return "connected", nil
		})
		return ch, "", err
	}
	if strings.HasPrefix(line, ":") {
		return nil, "", fmt.Errorf("unknown command %s (try :help)", line)
	}
	ch, err := opts.runner.Start(ctx, "execute", func(ctx context.Context) (any, error) {
		return opts.service.RunQuery(ctx, line, timeout)
	})
	return ch, line, err
}

func reportOutcome(out io.Writer, o task.Outcome, query string) {
	if o.Err != nil {
		fmt.Fprintln(out, "error:", o.Err)
		var execErr *ssh.ExecutionError
		if errors.As(o.Err, &execErr) && execErr.Timeout {
			fmt.Fprintln(out, "session closed after timeout; use :reconnect")
		}
		return
	}
	switch v := o.Value.(type) {
	case *ssh.Result:
		printResult(out, query, v)
	case string:
		fmt.Fprintln(out, v)
	}
}
