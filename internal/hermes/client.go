package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Client publishes domain events. Services accept a nil Client and skip
// publishing.
type Client interface {
	Publish(subject string, data interface{}) error
	Close()
}

// Deduplicated events carry a natural id. The stream drops a second publish
// of the same id inside its duplicate window, so retried or replayed
// generations are announced once.
type Deduplicated interface {
	MsgID() string
}

// Options configure the connection and the ranking event stream.
type Options struct {
	URL             string
	Stream          string
	MaxAge          time.Duration
	DuplicateWindow time.Duration
	PublishTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.Stream == "" {
		o.Stream = DefaultStream
	}
	if o.MaxAge <= 0 {
		o.MaxAge = 30 * 24 * time.Hour
	}
	if o.DuplicateWindow <= 0 {
		o.DuplicateWindow = 10 * time.Minute
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 2 * time.Second
	}
	return o
}

// streamConfig keeps every ranking, weight, score and document event for
// MaxAge on disk.
func streamConfig(o Options) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        o.Stream,
		Description: "Ranking administration events",
		Subjects:    StreamSubjects(),
		Retention:   jetstream.LimitsPolicy,
		Storage:     jetstream.FileStorage,
		MaxAge:      o.MaxAge,
		Duplicates:  o.DuplicateWindow,
	}
}

// NATSClient publishes events to JetStream and waits for the stream's ack.
type NATSClient struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	opts   Options
	logger *slog.Logger
}

func NewNATSClient(ctx context.Context, opts Options, logger *slog.Logger) (*NATSClient, error) {
	opts = opts.withDefaults()
	nc, err := nats.Connect(opts.URL,
		nats.Name("ranking-admin"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("event bus disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("event bus reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	c := &NATSClient{conn: nc, js: js, opts: opts, logger: logger}
	if _, err := js.CreateOrUpdateStream(ctx, streamConfig(opts)); err != nil {
		logger.Warn("ranking event stream unavailable", "stream", opts.Stream, "error", err)
	}
	return c, nil
}

func (c *NATSClient) Publish(subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subject, err)
	}
	var popts []jetstream.PublishOpt
	if d, ok := data.(Deduplicated); ok && d.MsgID() != "" {
		popts = append(popts, jetstream.WithMsgID(d.MsgID()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.PublishTimeout)
	defer cancel()
	ack, err := c.js.Publish(ctx, subject, payload, popts...)
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if ack.Duplicate {
		c.logger.Debug("duplicate event dropped by stream", "subject", subject, "stream", ack.Stream)
	}
	return nil
}

func (c *NATSClient) Close() {
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}

// Emit publishes data on subject when c is non-nil. Failures are logged at
// debug level and otherwise dropped.
func Emit(c Client, logger *slog.Logger, subject string, data interface{}) {
	if c == nil {
		return
	}
	if err := c.Publish(subject, data); err != nil && logger != nil {
		logger.Debug("event publish failed", "subject", subject, "error", err)
	}
}
