// Package queue moves chapter jobs through NATS JetStream.
//
// Delivery is at-least-once; the chunk processor's resume rule makes
// redelivered jobs idempotent.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// JobMessage is one chapter job. UserID is carried for attribution in logs
// and downstream notifications.
type JobMessage struct {
	ChapterID string `json:"chapter_id"`
	UserID    string `json:"user_id"`
}

// Config identifies the stream and consumer.
type Config struct {
	Stream  string
	Subject string
	Durable string
}

// Queue wraps the JetStream stream used for chapter jobs.
type Queue struct {
	js     nats.JetStreamContext
	cfg    Config
	logger *slog.Logger
}

// New ensures the stream exists and returns a queue bound to it.
func New(js nats.JetStreamContext, cfg Config, logger *slog.Logger) (*Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Storage:   nats.FileStorage,
		Retention: nats.WorkQueuePolicy,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return nil, fmt.Errorf("ensure stream %q: %w", cfg.Stream, err)
	}
	return &Queue{js: js, cfg: cfg, logger: logger.With("component", "queue")}, nil
}

// Publish enqueues a chapter job.
func (q *Queue) Publish(ctx context.Context, job JobMessage) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if _, err := q.js.Publish(q.cfg.Subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish job for chapter %s: %w", job.ChapterID, err)
	}
	return nil
}

// Handler processes one job. A returned error causes a redelivery.
type Handler func(ctx context.Context, job JobMessage) error

// Consume pulls jobs one at a time on a durable consumer and blocks until
// ctx is cancelled. In-flight handlers finish; unacked messages are
// redelivered to another worker.
func (q *Queue) Consume(ctx context.Context, handle Handler) error {
	sub, err := q.js.PullSubscribe(q.cfg.Subject, q.cfg.Durable, nats.AckExplicit())
	if err != nil {
		return fmt.Errorf("subscribe %q as %q: %w", q.cfg.Subject, q.cfg.Durable, err)
	}
	defer func() {
		if err := sub.Drain(); err != nil {
			q.logger.Warn("drain subscription", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := sub.Fetch(1, nats.MaxWait(5*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("fetch jobs: %w", err)
		}

		for _, msg := range msgs {
			q.dispatch(ctx, msg, handle)
		}
	}
}

func (q *Queue) dispatch(ctx context.Context, msg *nats.Msg, handle Handler) {
	var job JobMessage
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		// A malformed message can never succeed; drop it.
		q.logger.Error("unparseable job message, discarding", "error", err)
		if err := msg.Term(); err != nil {
			q.logger.Warn("terminate message", "error", err)
		}
		return
	}

	q.logger.Info("job received", "chapter_id", job.ChapterID, "user_id", job.UserID)
	if err := handle(ctx, job); err != nil {
		q.logger.Error("job failed, requeueing", "chapter_id", job.ChapterID, "error", err)
		if err := msg.Nak(); err != nil {
			q.logger.Warn("nak message", "error", err)
		}
		return
	}

	if err := msg.Ack(); err != nil {
		q.logger.Warn("ack message", "chapter_id", job.ChapterID, "error", err)
	}
}
