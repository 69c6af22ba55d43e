// Package notify fans planning events out to chat and messaging sinks.
// Delivery is best-effort: failures are logged, never returned to callers.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zulandar/drydock/internal/config"
	"github.com/zulandar/drydock/internal/logger"
	"github.com/zulandar/drydock/internal/metrics"
)

// Event kinds.
const (
	KindPublished  = "plan.published"
	KindScanErrors = "plan.scan_errors"
	KindRestored   = "plan.restored"
)

// Severities, mirrored from conflict severities.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Event is a human-facing planning notification.
type Event struct {
	Kind     string            `json:"kind"`
	PlanID   uint              `json:"plan_id"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Severity string            `json:"severity"`
	Fields   map[string]string `json:"fields,omitempty"`
	At       time.Time         `json:"at"`
}

// Color returns the hex color chat sinks render the event with.
func (e Event) Color() string {
	switch e.Severity {
	case SeverityError:
		return "#d9534f"
	case SeverityWarning:
		return "#f0ad4e"
	}
	return "#36a64f"
}

// Sink delivers events to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, evt Event) error
}

// Dispatcher hands every event to all sinks in the background.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher returns a dispatcher over sinks.
func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, timeout: 10 * time.Second, log: logger.Component("notify")}
}

// New builds a dispatcher with a log sink plus every sink configured in cfg.
func New(cfg config.NotifyConfig) (*Dispatcher, error) {
	sinks := []Sink{NewLogSink()}
	if cfg.Slack.Token != "" {
		sinks = append(sinks, NewSlackSink(cfg.Slack.Token, cfg.Slack.Channel))
	}
	if cfg.Discord.Token != "" {
		s, err := NewDiscordSink(cfg.Discord.Token, cfg.Discord.ChannelID)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if cfg.NATS.URL != "" {
		s, err := NewNATSSink(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return NewDispatcher(sinks...), nil
}

// Notify sends evt to every sink without blocking. A nil dispatcher drops
// events.
func (d *Dispatcher) Notify(evt Event) {
	if d == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	if evt.Severity == "" {
		evt.Severity = SeverityInfo
	}
	for _, s := range d.sinks {
		d.wg.Add(1)
		go func(s Sink) {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			err := s.Send(ctx, evt)
			metrics.NotificationsSent.WithLabelValues(s.Name(), metrics.Outcome(err)).Inc()
			if err != nil {
				d.log.Warn().Err(err).Str("sink", s.Name()).Str("kind", evt.Kind).Uint("plan_id", evt.PlanID).Msg("notification failed")
			}
		}(s)
	}
}

// Wait blocks until all in-flight notifications are done.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

// Close waits for in-flight notifications and closes sinks that hold
// connections.
func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	d.wg.Wait()
	var first error
	for _, s := range d.sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil && first == nil {
				first = fmt.Errorf("notify: close %s: %w", s.Name(), err)
			}
		}
	}
	return first
}

// LogSink writes events to the structured log.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink() *LogSink {
	return &LogSink{log: logger.Component("notify")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, evt Event) error {
	e := s.log.Info()
	if evt.Severity == SeverityError {
		e = s.log.Warn()
	}
	e.Str("kind", evt.Kind).Uint("plan_id", evt.PlanID).Str("severity", evt.Severity).Msg(evt.Title)
	return nil
}
