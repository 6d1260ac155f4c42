package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"remoteqna/internal/audit"
	"remoteqna/internal/config"
	"remoteqna/internal/debugger"
	"remoteqna/internal/settings"
	"remoteqna/internal/ssh"
	"remoteqna/internal/task"
)

type rootOptions struct {
	configDir string
	verbose   bool

	logger   *slog.Logger
	settings *settings.Store
	service  *debugger.Service
	runner   *task.Runner
}

// prepare builds the service graph once flags are parsed.
func (o *rootOptions) prepare() error {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	o.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	dir := o.configDir
	if dir == "" {
		d, err := config.Dir()
		if err != nil {
			return fmt.Errorf("resolve config dir: %w", err)
		}
		dir = d
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	o.configDir = dir

	o.settings = settings.Open(settings.Path(dir), o.logger.With("component", "settings"))
	settings.RegisterDefaults(o.settings)

	o.service = debugger.New(debugger.Deps{
		Profiles: config.NewStore(config.ProfilesPath(dir), o.logger.With("component", "profiles")),
		Settings: o.settings,
		Session:  ssh.NewClient(ssh.WithLogger(o.logger.With("component", "ssh"))),
		Audit:    audit.New(dir),
		Logger:   o.logger,
	})
	o.runner = task.NewRunner(o.logger.With("component", "task"))
	return nil
}

func main() {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "remoteqna",
		Short:         "Run BigFix QnA relevance queries on remote hosts over SSH",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return opts.prepare()
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", os.Getenv("REMOTEQNA_HOME"), "directory holding profiles.json, settings.yaml and access.log")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging to stderr")

	rootCmd.AddCommand(newProfileCmd(opts))
	rootCmd.AddCommand(newQueryCmd(opts))
	rootCmd.AddCommand(newTestPathCmd(opts))
	rootCmd.AddCommand(newShellCmd(opts))
	rootCmd.AddCommand(newRecentCmd(opts))
	rootCmd.AddCommand(newSettingsCmd(opts))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// runBlocking hands fn to the task runner and waits for its outcome while
// staying responsive to ctx.
func (o *rootOptions) runBlocking(ctx context.Context, action string, fn func(context.Context) (any, error)) (any, error) {
	ch, err := o.runner.Start(ctx, action, fn)
	if err != nil {
		return nil, err
	}
	res, err := task.Wait(ctx, ch)
	if err != nil {
		return nil, fmt.Errorf("%s interrupted: %w", action, err)
	}
	o.logger.Debug("action done", "action", action, "elapsed", res.Elapsed.Round(time.Millisecond))
	return res.Value, res.Err
}

// profileName returns name, or the last used profile when name is empty.
func (o *rootOptions) profileName(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	if last := o.service.LastProfile(); last != "" {
		return last, nil
	}
	return "", errors.New("no profile given and no profile used before")
}

// connect opens a session for profile, prompting for a password when none
// is stored and stdin is a terminal.
func (o *rootOptions) connect(ctx context.Context, profile string, askPassword bool) error {
	p, err := o.service.Profile(profile)
	if err != nil {
		return err
	}
	password := ""
	if askPassword || (o.service.Password(p) == "" && stdinIsTerminal()) {
		password, err = readPassword(fmt.Sprintf("Password for %s: ", p.CipherSeed()))
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "Connecting to %s (%s)...\n", p.Name, p.Address())
	_, err = o.runBlocking(ctx, "connect", func(ctx context.Context) (any, error) {
		return nil, o.service.Connect(ctx, p.Name, password)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Connected to %s\n", p.Address())
	return nil
}
