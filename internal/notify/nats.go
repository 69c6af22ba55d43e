package notify

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes events as JSON on a subject.
type NATSSink struct {
	conn    publisher
	subject string
	close   func()
}

func NewNATSSink(url, subject string) (*NATSSink, error) {
	nc, err := nats.Connect(url, nats.Name("drydock"))
	if err != nil {
		return nil, fmt.Errorf("nats: connect %s: %w", url, err)
	}
	return &NATSSink{conn: nc, subject: subject, close: nc.Close}, nil
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Send(_ context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("nats: encode: %w", err)
	}
	if err := s.conn.Publish(s.subject+"."+evt.Kind, data); err != nil {
		return fmt.Errorf("nats: publish: %w", err)
	}
	return nil
}

func (s *NATSSink) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
