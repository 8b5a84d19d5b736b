// Package eventbus publishes build events to NATS JetStream.
package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/nextgen/internal/foundation/errors"
	"git.home.luguber.info/inful/nextgen/internal/logfields"
)

// Header names carried on every published message.
const (
	HeaderBuildID    = "Nextgen-Build-Id"
	HeaderEventType  = "Nextgen-Event-Type"
	headerMetaPrefix = "Nextgen-Meta-"
)

// DefaultStream is the JetStream stream that captures build events.
const DefaultStream = "NEXTGEN_BUILDS"

type msgPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Options configures a Publisher.
type Options struct {
	URL     string
	Subject string
	// Stream is created or updated to cover Subject.>; defaults to DefaultStream.
	Stream  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Publisher sends each build event to <Subject>.<eventType>.
type Publisher struct {
	conn    *nats.Conn
	js      msgPublisher
	subject string
	timeout time.Duration
	logger  *slog.Logger
}

// Connect dials NATS and makes sure the build event stream exists.
func Connect(ctx context.Context, opts Options) (*Publisher, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Stream == "" {
		opts.Stream = DefaultStream
	}
	conn, err := nats.Connect(opts.URL, nats.Name("nextgen"), nats.Timeout(opts.Timeout))
	if err != nil {
		return nil, errors.NetworkError("failed to connect to NATS").
			WithCause(err).
			WithContext("url", opts.URL).
			Build()
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	sctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if _, err := js.CreateOrUpdateStream(sctx, jetstream.StreamConfig{
		Name:        opts.Stream,
		Description: "nextgen build events",
		Subjects:    []string{opts.Subject + ".>"},
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure stream %s: %w", opts.Stream, err)
	}

	opts.Logger.Info("NATS event publisher connected",
		logfields.URL(opts.URL),
		slog.String("subject", opts.Subject),
		slog.String("stream", opts.Stream))
	return newPublisher(conn, js, opts), nil
}

func newPublisher(conn *nats.Conn, js msgPublisher, opts Options) *Publisher {
	return &Publisher{conn: conn, js: js, subject: opts.Subject, timeout: opts.Timeout, logger: opts.Logger}
}

// Subject returns the subject an event type is published on.
func (p *Publisher) Subject(eventType string) string {
	return p.subject + "." + eventType
}

// Append publishes one event. It satisfies the pipeline event sink.
func (p *Publisher) Append(ctx context.Context, buildID, eventType string, payload []byte, metadata map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := Message(p.Subject(eventType), buildID, eventType, payload, metadata)
	if _, err := p.js.PublishMsg(ctx, msg); err != nil {
		return errors.NetworkError("failed to publish build event").
			WithCause(err).
			WithContext("subject", msg.Subject).
			Build()
	}
	p.logger.Debug("Published build event", logfields.BuildID(buildID), logfields.EventType(eventType))
	return nil
}

// Message builds the NATS message for an event. Metadata keys become
// Nextgen-Meta-<Key> headers.
func Message(subject, buildID, eventType string, payload []byte, metadata map[string]string) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(HeaderBuildID, buildID)
	msg.Header.Set(HeaderEventType, eventType)
	for k, v := range metadata {
		msg.Header.Set(headerMetaPrefix+canonical(k), v)
	}
	return msg
}

func canonical(k string) string {
	if k == "" {
		return k
	}
	return strings.ToUpper(k[:1]) + k[1:]
}

// Close drains and closes the connection.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
