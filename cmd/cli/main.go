package main

import (
	"context"
	"fmt"
	"github.com/joho/godotenv"
	"github.com/myrjola/dossier/internal/app"
	"github.com/myrjola/dossier/internal/config"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/logging"
	"github.com/spf13/cobra"
	"io/fs"
	"log/slog"
	"os"
)

// cli holds what every command needs to open the application.
type cli struct {
	lookupEnv func(string) (string, bool)
	verbose   bool
}

// withApp opens the application for the duration of fn. Runs started by fn are awaited before it returns.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		AddSource:   false,
		Level:       level,
		ReplaceAttr: nil,
	})))

	cfg, err := config.Load(c.lookupEnv)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	var a *app.App
	if a, err = app.New(ctx, cfg, logger); err != nil {
		return errors.Wrap(err, "open app")
	}
	return errors.Join(fn(ctx, a), a.Close())
}

func newRootCmd(lookupEnv func(string) (string, bool)) *cobra.Command {
	c := &cli{lookupEnv: lookupEnv, verbose: false}
	root := &cobra.Command{
		Use:           "dossier-cli",
		Short:         "Operate the dossier report generator",
		Long:          `Command line utilities for managing investigations, reports and the AI configuration of dossier.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddGroup(investigationGroup, reportGroup, configGroup)
	root.AddCommand(
		c.investigationCmd(),
		c.reportCmd(),
		c.configCmd(),
		c.usageCmd(),
	)
	return root
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := newRootCmd(os.LookupEnv).ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
