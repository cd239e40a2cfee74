// Package queue_publisher publishes domain events to RabbitMQ.  Publishing
// is best-effort: failures are logged and returned so callers may ignore
// them without interrupting the request that produced the event.
package queue_publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	q "github.com/iliyamo/aura/internal/queue"
)

const (
	dialTimeout      = 3 * time.Second
	redialInitial    = time.Second
	redialMaxWait    = 30 * time.Second
	redialMultiplier = 2
)

// ErrUnavailable is returned without touching the network while another
// publish is connecting or a failed connect is still cooling down.
var ErrUnavailable = errors.New("rabbitmq: broker unavailable")

// Publisher is what handlers depend on.
type Publisher interface {
	PublishMovieViewed(ctx context.Context, event q.MovieViewedEvent) error
	PublishAccountActivated(ctx context.Context, event q.AccountActivatedEvent) error
	Close() error
}

// New returns an AMQP publisher, or a no-op one when url is empty.
func New(url string, logger *zap.Logger) Publisher {
	if url == "" {
		return Nop{}
	}
	return newAMQPPublisher(url, logger, dialTimeout)
}

func newAMQPPublisher(url string, logger *zap.Logger, timeout time.Duration) *AMQPPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	redial := backoff.NewExponentialBackOff()
	redial.InitialInterval = redialInitial
	redial.MaxInterval = redialMaxWait
	redial.Multiplier = redialMultiplier
	redial.RandomizationFactor = 0
	redial.MaxElapsedTime = 0
	redial.Reset()
	return &AMQPPublisher{url: url, logger: logger, dialTimeout: timeout, redial: redial, now: time.Now}
}

// AMQPPublisher keeps one lazily opened connection and channel; both are
// dropped after any failure and reopened by a later publish.  Only one
// publish dials at a time and the dial happens outside mu; concurrent
// publishes fail fast with ErrUnavailable instead of queueing behind it.
// After a failed dial the next attempt waits for an exponential backoff.
type AMQPPublisher struct {
	url         string
	logger      *zap.Logger
	dialTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
	dialing  bool
	retryAt  time.Time
	redial   *backoff.ExponentialBackOff
}

func (p *AMQPPublisher) PublishMovieViewed(ctx context.Context, event q.MovieViewedEvent) error {
	return p.publish(ctx, q.MovieViewedQueue, event)
}

func (p *AMQPPublisher) PublishAccountActivated(ctx context.Context, event q.AccountActivatedEvent) error {
	return p.publish(ctx, q.AccountActivatedQueue, event)
}

func (p *AMQPPublisher) publish(ctx context.Context, queue string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("rabbitmq: marshal event failed", zap.String("queue", queue), zap.Error(err))
		return err
	}

	ch, err := p.channel(ctx)
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			p.logger.Warn("rabbitmq: connect failed", zap.Error(err))
		}
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != ch {
		// another publish reset the channel in the meantime
		return ErrUnavailable
	}
	if !p.declared[queue] {
		// durable so messages survive broker restarts
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			p.reset()
			p.logger.Warn("rabbitmq: queue declare failed", zap.String("queue", queue), zap.Error(err))
			return err
		}
		p.declared[queue] = true
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		p.reset()
		p.logger.Warn("rabbitmq: publish failed", zap.String("queue", queue), zap.Error(err))
		return err
	}
	return nil
}

// channel returns the open channel, dialing when there is none.
func (p *AMQPPublisher) channel(ctx context.Context) (*amqp.Channel, error) {
	p.mu.Lock()
	if p.ch != nil && !p.ch.IsClosed() {
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	}
	if p.dialing || p.now().Before(p.retryAt) {
		p.mu.Unlock()
		return nil, ErrUnavailable
	}
	p.reset()
	p.dialing = true
	p.mu.Unlock()

	conn, ch, err := p.dial(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialing = false
	if err != nil {
		p.retryAt = p.now().Add(p.redial.NextBackOff())
		return nil, err
	}
	p.redial.Reset()
	p.retryAt = time.Time{}
	p.conn, p.ch, p.declared = conn, ch, map[string]bool{}
	return ch, nil
}

// dial opens a connection and a channel.  The TCP connect and the AMQP
// handshake are bounded by dialTimeout and by ctx, whichever ends first.
func (p *AMQPPublisher) dial(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
	cfg := amqp.Config{
		Dial: func(network, addr string) (net.Conn, error) {
			deadline := time.Now().Add(p.dialTimeout)
			if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
				deadline = d
			}
			d := net.Dialer{Deadline: deadline}
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			// the handshake that follows is bounded by the same deadline
			if err := conn.SetDeadline(deadline); err != nil {
				_ = conn.Close()
				return nil, err
			}
			return conn, nil
		},
	}
	conn, err := amqp.DialConfig(p.url, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("channel open: %w", err)
	}
	return conn, ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch, p.declared = nil, nil, nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// Nop drops every event.
type Nop struct{}

func (Nop) PublishMovieViewed(context.Context, q.MovieViewedEvent) error           { return nil }
func (Nop) PublishAccountActivated(context.Context, q.AccountActivatedEvent) error { return nil }
func (Nop) Close() error                                                           { return nil }
