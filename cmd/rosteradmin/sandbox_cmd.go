package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/kingrea/rosteradmin/internal/logbook"
	"github.com/kingrea/rosteradmin/internal/sandbox"
)

type sandboxOptions struct {
	Addr     string
	Database string
}

func newSandboxCmd(root *rootOptions) *cobra.Command {
	var opts sandboxOptions
	cmd := &cobra.Command{
		Use:   "sandbox [--addr host:port] [--db path]",
		Short: "Serve a local admin backend backed by SQLite",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root.ProjectDir)
			if err != nil {
				return err
			}
			settings := sandbox.SettingsFromConfig(cfg)
			if addr := strings.TrimSpace(opts.Addr); addr != "" {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return errors.Wrap(err, "--addr")
				}
				n, err := strconv.Atoi(port)
				if err != nil {
					return errors.Wrap(err, "--addr port")
				}
				settings.Host, settings.Port = host, n
			}
			if db := strings.TrimSpace(opts.Database); db != "" {
				settings.Database = db
			}

			lb, err := logbook.New(cfg.DiagnosticsLogPath())
			if err != nil {
				return err
			}
			defer lb.Close()

			ctx := cmd.Context()
			store, err := sandbox.Open(ctx, settings.Database)
			if err != nil {
				return err
			}
			defer store.Close()

			srv := sandbox.NewServer(settings, store, sandbox.WithLogbook(lb))
			if err := srv.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sandbox listening on %s (admin/admin)\n", srv.BaseURL())
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (defaults to sandbox.addr in config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite file (empty keeps data in memory)")
	return cmd
}
