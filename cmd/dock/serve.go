package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/zulandar/drydock/internal/logger"
	"github.com/zulandar/drydock/internal/planner"
	"github.com/zulandar/drydock/internal/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Serves the planning API and metrics, and archives elapsed plans on the housekeeping schedule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*configPath, func(a *app) error {
				if port == 0 {
					port = a.cfg.Server.Port
				}
				return runServe(cmd, a, port)
			})
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")
	return cmd
}

func runServe(cmd *cobra.Command, a *app, port int) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	sched, err := startHousekeeping(ctx, a.svc, a.cfg.Housekeeping.ArchiveCron)
	if err != nil {
		return err
	}
	defer func() { <-sched.Stop().Done() }()

	return server.Start(ctx, server.StartOpts{
		Service: a.svc,
		Port:    port,
		Out:     cmd.OutOrStdout(),
	})
}

// startHousekeeping schedules archiving of plans whose week has ended.
func startHousekeeping(ctx context.Context, svc *planner.Service, spec string) (*cron.Cron, error) {
	log := logger.Component("housekeeping")
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(spec, func() {
		n, err := svc.ArchiveElapsed(ctx)
		if err != nil {
			log.Error().Err(err).Msg("archive elapsed plans")
			return
		}
		if n > 0 {
			log.Info().Int64("archived", n).Msg("archived elapsed plans")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("housekeeping: schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
