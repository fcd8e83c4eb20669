// Package amqp publishes process completion events to a RabbitMQ exchange.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-processes/core"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventProcessCompleted = "process.completed"

	DefaultExchange   = "processes"
	DefaultRoutingKey = "processes.completed"
)

type Meta struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Producer      string    `json:"producer,omitempty"`
	Time          time.Time `json:"time"`
}

// CompletedEvent is the data of a process.completed envelope.
type CompletedEvent struct {
	ProcessName string             `json:"processName"`
	TriggeredBy string             `json:"triggeredBy,omitempty"`
	StartedAt   time.Time          `json:"startedAt"`
	DurationMS  int64              `json:"durationMs"`
	Result      core.ProcessResult `json:"result"`
}

type Envelope struct {
	Meta Meta           `json:"meta"`
	Data CompletedEvent `json:"data"`
}

// Channel is the publishing half of *amqp.Channel.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange string, key string, mandatory bool, immediate bool, msg amqp.Publishing) error
}

type Option func(*ResultPublisher)

func WithExchange(exchange string) Option {
	return func(p *ResultPublisher) {
		p.exchange = strings.TrimSpace(exchange)
	}
}

func WithRoutingKey(key string) Option {
	return func(p *ResultPublisher) {
		p.routingKey = strings.TrimSpace(key)
	}
}

func WithProducer(producer string) Option {
	return func(p *ResultPublisher) {
		p.producer = strings.TrimSpace(producer)
	}
}

func WithLogger(logger glog.Logger) Option {
	return func(p *ResultPublisher) {
		p.logger = logger
	}
}

func WithIDFunc(fn func() string) Option {
	return func(p *ResultPublisher) {
		p.newID = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *ResultPublisher) {
		p.now = now
	}
}

// ResultPublisher implements core.ResultPublisher over an AMQP channel.
type ResultPublisher struct {
	channel    Channel
	closer     func() error
	exchange   string
	routingKey string
	producer   string
	logger     glog.Logger
	newID      func() string
	now        func() time.Time
}

func NewResultPublisher(channel Channel, opts ...Option) (*ResultPublisher, error) {
	if channel == nil {
		return nil, core.ValidationFailed("channel", "amqp channel is required")
	}
	p := &ResultPublisher{
		channel:    channel,
		exchange:   DefaultExchange,
		routingKey: DefaultRoutingKey,
		newID:      uuid.NewString,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	_, logger := glog.Resolve("processes.amqp", nil, p.logger)
	p.logger = glog.Ensure(logger)
	return p, nil
}

// Dial connects to url, declares a durable topic exchange and returns a
// publisher that owns the connection.
func Dial(url string, opts ...Option) (*ResultPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp: open channel: %w", err)
	}
	publisher, err := NewResultPublisher(ch, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(publisher.exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp: declare exchange %s: %w", publisher.exchange, err)
	}
	publisher.closer = conn.Close
	return publisher, nil
}

func (p *ResultPublisher) Close() error {
	if p == nil || p.closer == nil {
		return nil
	}
	return p.closer()
}

// Envelope builds the event for a finished run. The caller id, when present,
// becomes the correlation id; otherwise the event id is reused.
func (p *ResultPublisher) Envelope(record core.RunRecord) Envelope {
	id := p.newID()
	correlationID := strings.TrimSpace(record.Parameters.CallerID)
	if correlationID == "" {
		correlationID = id
	}
	return Envelope{
		Meta: Meta{
			ID:            id,
			Type:          EventProcessCompleted,
			CorrelationID: correlationID,
			Producer:      p.producer,
			Time:          p.now().UTC(),
		},
		Data: CompletedEvent{
			ProcessName: record.ProcessName,
			TriggeredBy: record.Parameters.TriggeredBy,
			StartedAt:   record.StartedAt.UTC(),
			DurationMS:  record.Duration.Milliseconds(),
			Result:      record.Result.Clone(),
		},
	}
}

func (p *ResultPublisher) PublishResult(ctx context.Context, record core.RunRecord) error {
	if p == nil || p.channel == nil {
		return fmt.Errorf("amqp: publisher is not configured")
	}
	env := p.Envelope(record)
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("amqp: marshal envelope: %w", err)
	}
	err = p.channel.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: env.Meta.CorrelationID,
		Type:          env.Meta.Type,
		Timestamp:     env.Meta.Time,
		AppId:         p.producer,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("amqp: publish %s: %w", env.Meta.Type, err)
	}
	p.logger.Debug("process result published",
		"exchange", p.exchange,
		"routing_key", p.routingKey,
		"process_id", record.ProcessID,
		"event_id", env.Meta.ID,
	)
	return nil
}

var _ core.ResultPublisher = (*ResultPublisher)(nil)
