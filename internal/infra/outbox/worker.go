package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Worker drains the outbox store and publishes each document as a
// CloudEvents envelope. Publication failures stay in the store and retry on
// a later tick; the booking transaction itself is never blocked on Kafka.
type Worker struct {
	Store       Store
	Producer    Producer
	Logger      *slog.Logger
	Interval    time.Duration
	BatchSize   int
	TopicPrefix string
	Source      string
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.processOnce(ctx); err != nil {
				return err
			}
		}
	}
}

func (w *Worker) processOnce(ctx context.Context) error {
	docs, err := w.Store.Claim(ctx, w.batchSize())
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := w.publish(ctx, doc); err != nil {
			if w.Logger != nil {
				w.Logger.Warn("outbox publish failed", "event", doc.Name, "aggregate", doc.Aggregate, "error", err)
			}
			_ = w.Store.MarkFailed(ctx, doc, err.Error())
			continue
		}
		_ = w.Store.MarkSent(ctx, doc.ID, time.Now().UTC())
	}
	return nil
}

func (w *Worker) publish(ctx context.Context, doc EventDocument) error {
	payload, headers, err := w.formatPayload(doc)
	if err != nil {
		return err
	}
	return w.Producer.Publish(ctx, w.topicFor(doc.Name), doc.Aggregate, payload, headers)
}

func (w *Worker) formatPayload(doc EventDocument) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(doc.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              uuid.NewString(),
		"type":            doc.Name + ".v1",
		"source":          w.source(),
		"time":            doc.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := doc.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
	}
	for k, v := range doc.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

// topicFor maps "rental.reserved" onto "rental.events.v1".
func (w *Worker) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	topic := base + ".events.v1"
	if w.TopicPrefix != "" {
		topic = w.TopicPrefix + topic
	}
	return topic
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 32
	}
	return w.BatchSize
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "app://rentdesk"
}
