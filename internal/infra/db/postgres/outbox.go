package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	appoutbox "rentdesk/internal/app/outbox"
	"rentdesk/internal/app/uow"
	infraoutbox "rentdesk/internal/infra/outbox"
)

var ErrOutboxOutsideTransaction = errors.New("postgres: outbox add requires an active unit of work")

// Outbox writes event rows inside the ambient unit of work, so the event and
// the state change commit or roll back together. The worker side drains
// through the Store methods on a plain connection.
type Outbox struct {
	db      *sql.DB
	backoff []time.Duration
}

func NewOutbox(db *sql.DB, backoff []time.Duration) *Outbox {
	return &Outbox{db: db, backoff: backoff}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return ErrOutboxOutsideTransaction
	}
	pgUnit, ok := unit.(*Unit)
	if !ok {
		return ErrOutboxOutsideTransaction
	}
	headers, err := json.Marshal(headerMap(record.Headers))
	if err != nil {
		return fmt.Errorf("postgres: encode outbox headers: %w", err)
	}
	_, err = pgUnit.Tx().ExecContext(ctx, `
		INSERT INTO outbox_events (id, name, aggregate, payload, headers, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), record.Name, record.Aggregate, record.Payload, headers, record.OccurredAt)
	if err != nil {
		return fmt.Errorf("postgres: add outbox event: %w", mapError(err))
	}
	return nil
}

// Flush is a no-op: rows became durable with the transaction commit.
func (o *Outbox) Flush(ctx context.Context) error { return nil }

// Claim marks up to limit due rows SENDING and returns them. SKIP LOCKED
// keeps multiple workers from claiming the same rows.
func (o *Outbox) Claim(ctx context.Context, limit int) ([]infraoutbox.EventDocument, error) {
	rows, err := o.db.QueryContext(ctx, `
		UPDATE outbox_events SET status = 'SENDING'
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = 'PENDING'
			  AND (next_attempt_at IS NULL OR next_attempt_at <= now())
			ORDER BY occurred_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, name, aggregate, payload, headers, occurred_at, attempts, last_error`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: claim outbox events: %w", mapError(err))
	}
	defer rows.Close()

	var docs []infraoutbox.EventDocument
	for rows.Next() {
		var (
			doc     infraoutbox.EventDocument
			headers []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Aggregate, &doc.Payload, &headers,
			&doc.OccurredAt, &doc.Attempts, &doc.LastError); err != nil {
			return nil, fmt.Errorf("postgres: scan outbox event: %w", err)
		}
		if len(headers) > 0 {
			if err := json.Unmarshal(headers, &doc.Headers); err != nil {
				return nil, fmt.Errorf("postgres: decode outbox headers: %w", err)
			}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: claim outbox events: %w", mapError(err))
	}
	return docs, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string, at time.Time) error {
	_, err := o.db.ExecContext(ctx, `
		UPDATE outbox_events SET status = 'SENT', sent_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("postgres: mark outbox sent: %w", mapError(err))
	}
	return nil
}

func (o *Outbox) MarkFailed(ctx context.Context, doc infraoutbox.EventDocument, reason string) error {
	_, err := o.db.ExecContext(ctx, `
		UPDATE outbox_events
		SET status = 'PENDING', attempts = attempts + 1, last_error = $2, next_attempt_at = $3
		WHERE id = $1`, doc.ID, reason, time.Now().UTC().Add(o.nextDelay(doc.Attempts)))
	if err != nil {
		return fmt.Errorf("postgres: mark outbox failed: %w", mapError(err))
	}
	return nil
}

func (o *Outbox) nextDelay(attempts int) time.Duration {
	if attempts < len(o.backoff) {
		return o.backoff[attempts]
	}
	if len(o.backoff) > 0 {
		return o.backoff[len(o.backoff)-1]
	}
	return 5 * time.Second
}

func headerMap(h map[string]string) map[string]string {
	if h == nil {
		return map[string]string{}
	}
	return h
}

var _ appoutbox.Outbox = (*Outbox)(nil)
var _ infraoutbox.Store = (*Outbox)(nil)
