// Package planner is the single entry point for changing plans. Every
// structural change takes the plan's lock, runs in one transaction, and
// clears the plan's validation stamp.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/capacity"
	"github.com/zulandar/drydock/internal/conflict"
	"github.com/zulandar/drydock/internal/logger"
	"github.com/zulandar/drydock/internal/metrics"
	"github.com/zulandar/drydock/internal/notify"
	"github.com/zulandar/drydock/internal/plan"
	"github.com/zulandar/drydock/internal/planlock"
	"github.com/zulandar/drydock/internal/validation"
)

// Opts configures a Service.
type Opts struct {
	DB       *gorm.DB
	Locker   planlock.Locker     // defaults to an in-process lock
	Notifier *notify.Dispatcher  // nil drops notifications
	Capacity *capacity.Model     // defaults to a one-minute policy cache
	Now      func() time.Time    // defaults to time.Now in UTC
}

// Service runs plan operations under the plan lock.
type Service struct {
	DB        *gorm.DB
	Locker    planlock.Locker
	Notifier  *notify.Dispatcher
	Capacity  *capacity.Model
	Detector  *conflict.Detector
	Validator *validation.Engine
	Now       func() time.Time

	log zerolog.Logger
}

// New returns a Service. DB is required.
func New(opts Opts) (*Service, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("planner: database connection is required")
	}
	if opts.Locker == nil {
		opts.Locker = planlock.NewLocal()
	}
	if opts.Capacity == nil {
		opts.Capacity = capacity.New(time.Minute)
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	v := validation.New(opts.Capacity)
	return &Service{
		DB:        opts.DB,
		Locker:    opts.Locker,
		Notifier:  opts.Notifier,
		Capacity:  opts.Capacity,
		Detector:  v.Detector,
		Validator: v,
		Now:       opts.Now,
		log:       logger.Component("planner"),
	}, nil
}

// locked runs fn in a transaction while holding planID's lock.
func (s *Service) locked(ctx context.Context, planID uint, fn func(tx *gorm.DB) error) error {
	unlock, err := s.Locker.Lock(ctx, planID)
	if err != nil {
		return err
	}
	defer unlock()
	return s.DB.WithContext(ctx).Transaction(fn)
}

// mutate runs a structural change of planID and clears its validation stamp.
func (s *Service) mutate(ctx context.Context, op string, planID uint, fn func(tx *gorm.DB) error) error {
	err := s.locked(ctx, planID, func(tx *gorm.DB) error {
		if err := fn(tx); err != nil {
			return err
		}
		return plan.Invalidate(tx, planID)
	})
	metrics.Mutations.WithLabelValues(op, metrics.Outcome(err)).Inc()
	if err != nil {
		s.log.Debug().Err(err).Str("op", op).Uint("plan_id", planID).Msg("mutation failed")
		return err
	}
	s.log.Info().Str("op", op).Uint("plan_id", planID).Msg("plan changed")
	return nil
}

// planOfJob resolves the plan owning a job before the lock is taken.
func (s *Service) planOfJob(ctx context.Context, jobID uint) (uint, error) {
	return plan.OfJob(s.DB.WithContext(ctx), jobID)
}

func (s *Service) planOfDay(ctx context.Context, dayID uint) (uint, error) {
	return plan.OfDay(s.DB.WithContext(ctx), dayID)
}
