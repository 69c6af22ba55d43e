package planlock

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/drydock/internal/config"
)

func TestLocal_Exclusive(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, 1)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, l.held(1))
}

func TestLocal_IndependentPlans(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	unlock1, err := l.Lock(ctx, 1)
	require.NoError(t, err)
	unlock2, err := l.Lock(ctx, 2)
	require.NoError(t, err)
	unlock1()
	unlock2()
	assert.Zero(t, l.held(1))
	assert.Zero(t, l.held(2))
}

func TestLocal_ContextCancel(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background(), 7)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, l.held(7))

	unlock()
	unlock()
	assert.Zero(t, l.held(7))
}

func TestNew(t *testing.T) {
	lk, err := New(config.LockConfig{Backend: "local"})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, lk)

	lk, err = New(config.LockConfig{Backend: "redis", RedisURL: "redis://127.0.0.1:6379/0"})
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, lk)

	_, err = New(config.LockConfig{Backend: "redis", RedisURL: "::"})
	assert.Error(t, err)

	_, err = New(config.LockConfig{Backend: "zookeeper"})
	assert.Error(t, err)

	assert.Equal(t, "drydock:plan:42", Key(42))
}

func TestRedis_ReleasedLogsLostLock(t *testing.T) {
	var buf bytes.Buffer
	r := &Redis{expiry: time.Second, log: zerolog.New(&buf)}

	r.released(5, true, nil)
	assert.Empty(t, buf.String())

	r.released(5, false, errors.New("lock was already expired"))
	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"plan_id":5`)
	assert.Contains(t, out, "lock was already expired")
	assert.Contains(t, out, "plan lock lost before release")

	buf.Reset()
	r.released(6, false, nil)
	assert.Contains(t, buf.String(), `"plan_id":6`)
}
