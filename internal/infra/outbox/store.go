package outbox

import (
	"context"
	"time"
)

// EventDocument is one stored outbox row awaiting publication.
type EventDocument struct {
	ID         string
	Name       string
	Aggregate  string
	Payload    []byte
	Headers    map[string]string
	OccurredAt time.Time
	Attempts   int
	LastError  string
}

// Store is the durable queue side of the outbox. Claim removes documents
// from the ready set; a failed publish returns them through MarkFailed.
type Store interface {
	Claim(ctx context.Context, limit int) ([]EventDocument, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, doc EventDocument, reason string) error
}
