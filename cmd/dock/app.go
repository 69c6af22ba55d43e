package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/zulandar/drydock/internal/capacity"
	"github.com/zulandar/drydock/internal/config"
	"github.com/zulandar/drydock/internal/db"
	"github.com/zulandar/drydock/internal/logger"
	"github.com/zulandar/drydock/internal/notify"
	"github.com/zulandar/drydock/internal/planlock"
	"github.com/zulandar/drydock/internal/planner"
)

// app bundles what a command needs once the config is loaded.
type app struct {
	cfg      *config.Config
	svc      *planner.Service
	notifier *notify.Dispatcher
}

// openApp loads the config, connects to the database and builds the planner
// with the configured lock backend and notification sinks.
func openApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Configure(cfg.Log)

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	locker, err := planlock.New(cfg.Lock)
	if err != nil {
		return nil, err
	}
	notifier, err := notify.New(cfg.Notify)
	if err != nil {
		return nil, err
	}
	svc, err := planner.New(planner.Opts{
		DB:       gormDB,
		Locker:   locker,
		Notifier: notifier,
		Capacity: capacity.New(time.Minute),
	})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, svc: svc, notifier: notifier}, nil
}

// Close flushes pending notifications.
func (a *app) Close() error {
	return a.notifier.Close()
}

// withApp opens the app, runs fn and closes it again.
func withApp(configPath string, fn func(a *app) error) error {
	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	runErr := fn(a)
	if err := a.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func parseID(s, what string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return uint(v), nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}
