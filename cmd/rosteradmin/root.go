package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/kingrea/rosteradmin/internal/config"
	"github.com/kingrea/rosteradmin/internal/logbook"
	"github.com/kingrea/rosteradmin/internal/sandbox"
	"github.com/kingrea/rosteradmin/internal/tui"
)

type rootOptions struct {
	ProjectDir  string
	BaseURL     string
	Username    string
	WithSandbox bool
}

func newRootCmd() *cobra.Command {
	var opts rootOptions
	cmd := &cobra.Command{
		Use:           "rosteradmin",
		Short:         "Terminal admin panel for the employee roster",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPanel(cmd.Context(), opts)
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ProjectDir, "project-dir", "", "directory holding .rosteradmin (defaults to cwd)")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "admin backend root URL")
	cmd.Flags().StringVar(&opts.Username, "username", "", "login name used at startup")
	cmd.Flags().BoolVar(&opts.WithSandbox, "sandbox", false, "start an in-process sandbox backend and log in as admin")
	cmd.AddCommand(newSandboxCmd(&opts))
	return cmd
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func loadConfig(projectDir string) (*config.Config, error) {
	dir := strings.TrimSpace(projectDir)
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "determine working directory")
		}
		dir = cwd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(err, "resolve project dir")
	}
	if err := config.InitDir(abs); err != nil {
		return nil, err
	}
	return config.Load(abs)
}

func runPanel(ctx context.Context, opts rootOptions) error {
	cfg, err := loadConfig(opts.ProjectDir)
	if err != nil {
		return err
	}
	if err := cfg.SetBaseURL(opts.BaseURL); err != nil {
		return err
	}
	if user := strings.TrimSpace(opts.Username); user != "" {
		cfg.File.Auth.Username = user
	}

	lb, err := logbook.New(cfg.DiagnosticsLogPath())
	if err != nil {
		return err
	}
	defer lb.Close()
	if opts.WithSandbox {
		stopSandbox, err := startEmbeddedSandbox(ctx, cfg, lb)
		if err != nil {
			return err
		}
		defer stopSandbox()
	}

	app, err := tui.NewApp(cfg, tui.WithContext(ctx), tui.WithLogbook(lb))
	if err != nil {
		return err
	}
	return tui.Run(app)
}

// startEmbeddedSandbox serves the sandbox on an ephemeral port and points the
// panel at it with the seeded admin account.
func startEmbeddedSandbox(ctx context.Context, cfg *config.Config, lb *logbook.Logbook) (func(), error) {
	settings := sandbox.SettingsFromConfig(cfg)
	settings.Port = 0
	store, err := sandbox.Open(ctx, settings.Database)
	if err != nil {
		return nil, err
	}
	srv := sandbox.NewServer(settings, store, sandbox.WithLogbook(lb))
	if err := srv.Start(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := cfg.SetBaseURL(srv.BaseURL()); err != nil {
		_ = srv.Shutdown(context.Background())
		_ = store.Close()
		return nil, err
	}
	if !cfg.HasCredentials() {
		cfg.File.Auth.Username, cfg.File.Auth.Password = "admin", "admin"
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = store.Close()
	}, nil
}
