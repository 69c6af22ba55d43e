// Package planlock serializes mutations of a single plan, in process or
// across processes through Redis.
package planlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/zulandar/drydock/internal/config"
	"github.com/zulandar/drydock/internal/logger"
	"github.com/zulandar/drydock/internal/metrics"
)

// Unlock releases a held plan lock.
type Unlock func()

// Locker hands out exclusive per-plan locks.
type Locker interface {
	Lock(ctx context.Context, planID uint) (Unlock, error)
}

// New builds the Locker selected by cfg.
func New(cfg config.LockConfig) (Locker, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocal(), nil
	case "redis":
		opts, err := goredislib.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("planlock: parse redis url: %w", err)
		}
		return NewRedis(goredislib.NewClient(opts), cfg.Expiry), nil
	}
	return nil, fmt.Errorf("planlock: unknown backend %q", cfg.Backend)
}

// Local is an in-process keyed lock. Entries are dropped once no holder or
// waiter remains.
type Local struct {
	mu    sync.Mutex
	locks map[uint]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{locks: make(map[uint]*entry)}
}

func (l *Local) Lock(ctx context.Context, planID uint) (Unlock, error) {
	started := time.Now()
	l.mu.Lock()
	e, ok := l.locks[planID]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[planID] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(planID, e)
		return nil, fmt.Errorf("planlock: plan %d: %w", planID, ctx.Err())
	}
	metrics.LockWait.WithLabelValues("local").Observe(time.Since(started).Seconds())

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(planID, e)
		})
	}, nil
}

func (l *Local) release(planID uint, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, planID)
	}
}

// held reports how many callers hold or wait for planID.
func (l *Local) held(planID uint) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.locks[planID]; ok {
		return e.refs
	}
	return 0
}

// Redis takes a redsync mutex named drydock:plan:<id>.
type Redis struct {
	rs     *redsync.Redsync
	expiry time.Duration
	log    zerolog.Logger
}

func NewRedis(client *goredislib.Client, expiry time.Duration) *Redis {
	if expiry <= 0 {
		expiry = 30 * time.Second
	}
	return &Redis{rs: redsync.New(goredis.NewPool(client)), expiry: expiry, log: logger.Component("planlock")}
}

// Key is the redis key guarding planID.
func Key(planID uint) string {
	return fmt.Sprintf("drydock:plan:%d", planID)
}

func (r *Redis) Lock(ctx context.Context, planID uint) (Unlock, error) {
	started := time.Now()
	m := r.rs.NewMutex(Key(planID), redsync.WithExpiry(r.expiry), redsync.WithTries(64), redsync.WithRetryDelay(50*time.Millisecond))
	if err := m.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("planlock: plan %d: %w", planID, err)
	}
	metrics.LockWait.WithLabelValues("redis").Observe(time.Since(started).Seconds())
	return func() {
		ok, err := m.Unlock()
		r.released(planID, ok, err)
	}, nil
}

// released logs an unlock that found the mutex gone, which means the lock
// expired while the mutation was still running.
func (r *Redis) released(planID uint, ok bool, err error) {
	if ok && err == nil {
		return
	}
	ev := r.log.Warn().Uint("plan_id", planID).Dur("expiry", r.expiry)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("plan lock lost before release")
}
