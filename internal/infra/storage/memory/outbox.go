package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"rentdesk/internal/app/outbox"
	"rentdesk/internal/app/uow"
	infraoutbox "rentdesk/internal/infra/outbox"
)

var ErrOutboxOutsideTransaction = errors.New("memory: outbox add requires an active unit of work")

// Outbox mirrors the postgres outbox: Add stages the document on the ambient
// unit of work, so the event and the state change become visible together
// when the unit commits. A rolled-back unit leaks nothing to the worker.
type Outbox struct {
	mu    sync.Mutex
	ready []infraoutbox.EventDocument
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Add(ctx context.Context, record outbox.EventRecord) error {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return ErrOutboxOutsideTransaction
	}
	memUnit, ok := unit.(*Unit)
	if !ok {
		return ErrOutboxOutsideTransaction
	}
	return memUnit.stageEvent(o, infraoutbox.EventDocument{
		ID:         uuid.NewString(),
		Name:       record.Name,
		Aggregate:  record.Aggregate,
		Payload:    record.Payload,
		Headers:    record.Headers,
		OccurredAt: record.OccurredAt,
	})
}

// Flush is a no-op: staged documents become visible on unit commit.
func (o *Outbox) Flush(ctx context.Context) error { return nil }

func (o *Outbox) promote(docs []infraoutbox.EventDocument) {
	if len(docs) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ready = append(o.ready, docs...)
}

// Claim hands out up to limit ready documents and removes them from the
// queue. A failed publish re-enqueues through MarkFailed.
func (o *Outbox) Claim(ctx context.Context, limit int) ([]infraoutbox.EventDocument, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if limit <= 0 || limit > len(o.ready) {
		limit = len(o.ready)
	}
	claimed := make([]infraoutbox.EventDocument, limit)
	copy(claimed, o.ready[:limit])
	o.ready = o.ready[limit:]
	return claimed, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (o *Outbox) MarkFailed(ctx context.Context, doc infraoutbox.EventDocument, reason string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	doc.Attempts++
	doc.LastError = reason
	o.ready = append(o.ready, doc)
	return nil
}

var _ outbox.Outbox = (*Outbox)(nil)
var _ infraoutbox.Store = (*Outbox)(nil)
