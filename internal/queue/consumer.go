package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// NewActivityLog opens a daily rotating log at path.  Files are named
// path.YYYYMMDD and path itself links to the current one.
func NewActivityLog(path string, maxAge time.Duration) (*rotatelogs.RotateLogs, error) {
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("activity log path: %w", err)
	}
	return rotatelogs.New(
		abs+".%Y%m%d",
		rotatelogs.WithLinkName(abs),
		rotatelogs.WithRotationTime(24*time.Hour),
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithClock(rotatelogs.UTC),
	)
}

// Consumer reads every event queue and appends one line per message to an
// activity log.  It reconnects until its context is cancelled.
type Consumer struct {
	url    string
	out    io.Writer
	logger *zap.Logger
	mu     sync.Mutex
}

func NewConsumer(url string, out io.Writer, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{url: url, out: out, logger: logger}
}

// Run blocks until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	if c.url == "" {
		return errors.New("broker url is empty")
	}
	wait := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("event consumer: dial failed", zap.Error(err), zap.Duration("retry_in", wait))
			if !sleep(ctx, wait) {
				return ctx.Err()
			}
			if wait < 30*time.Second {
				wait *= 2
			}
			continue
		}
		wait = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("event consumer: loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warn("event consumer: set QoS failed", zap.Error(err))
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(Queues))
	for _, name := range Queues {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
		msgs, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", name, err)
		}
		wg.Add(1)
		go func(name string, msgs <-chan amqp.Delivery) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-msgs:
					if !ok {
						errs <- fmt.Errorf("%s: deliveries channel closed", name)
						return
					}
					if err := c.Handle(name, d.Body); err != nil {
						c.logger.Warn("event consumer: handle message failed", zap.String("queue", name), zap.Error(err))
						_ = d.Nack(false, false)
						continue
					}
					_ = d.Ack(false)
				}
			}
		}(name, msgs)
	}

	select {
	case <-ctx.Done():
		_ = ch.Close()
		wg.Wait()
		return ctx.Err()
	case err := <-errs:
		_ = ch.Close()
		wg.Wait()
		return err
	}
}

// Handle formats one message body and appends it to the activity log.
func (c *Consumer) Handle(queue string, body []byte) error {
	line, err := FormatLine(queue, body)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.out, line); err != nil {
		return fmt.Errorf("write activity log: %w", err)
	}
	return nil
}

// FormatLine renders a single-line, human-friendly record for an event.
func FormatLine(queue string, body []byte) (string, error) {
	switch queue {
	case MovieViewedQueue:
		var ev MovieViewedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		viewer := "anonymous"
		if ev.UserID != nil {
			viewer = fmt.Sprintf("%d", *ev.UserID)
		}
		return fmt.Sprintf("[%s] Movie viewed | movie_id=%d | tmdb_id=%d | title=%q | user_id=%s\n",
			ev.ViewedAt, ev.MovieID, ev.TMDBID, ev.Title, viewer), nil
	case AccountActivatedQueue:
		var ev AccountActivatedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Account activated | user_id=%d | username=%q\n",
			ev.ActivatedAt, ev.UserID, strings.TrimSpace(ev.Username)), nil
	default:
		return "", fmt.Errorf("unknown queue %q", queue)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
