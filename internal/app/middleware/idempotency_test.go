package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdesk/internal/app/commands"
)

type idemCommand struct {
	key     string
	idemKey string
}

func (c idemCommand) Key() string            { return c.key }
func (c idemCommand) IdempotencyKey() string { return c.idemKey }
func (c idemCommand) ResultPrototype() any   { return &idemResult{} }

type idemResult struct {
	RentalID string `json:"rental_id"`
}

type mapStore struct {
	records map[string]IdempotencyRecord
}

func newMapStore() *mapStore {
	return &mapStore{records: make(map[string]IdempotencyRecord)}
}

func (s *mapStore) Get(ctx context.Context, key string) (IdempotencyRecord, bool, error) {
	rec, ok := s.records[key]
	return rec, ok, nil
}

func (s *mapStore) Save(ctx context.Context, rec IdempotencyRecord) error {
	s.records[rec.Key] = rec
	return nil
}

type countingBus struct {
	calls  int
	result any
	err    error
}

func (b *countingBus) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	b.calls++
	return b.result, b.err
}

func TestIdempotencyReplaysStoredResult(t *testing.T) {
	base := &countingBus{result: &idemResult{RentalID: "rnt-1"}}
	bus := ChainCommands(base, Idempotency(newMapStore(), JSONResultCodec{}))
	cmd := idemCommand{key: "booking.create_reservation", idemKey: "client-key-1"}

	first, err := bus.Dispatch(context.Background(), cmd)
	require.NoError(t, err)

	second, err := bus.Dispatch(context.Background(), cmd)
	require.NoError(t, err)

	// the handler ran exactly once; the second response is a replay
	assert.Equal(t, 1, base.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, "rnt-1", second.(*idemResult).RentalID)
}

func TestIdempotencyReplaysFailuresToo(t *testing.T) {
	base := &countingBus{err: errors.New("availability: requested quantity exceeds free units for the window")}
	bus := ChainCommands(base, Idempotency(newMapStore(), JSONResultCodec{}))
	cmd := idemCommand{key: "booking.create_reservation", idemKey: "client-key-2"}

	_, err := bus.Dispatch(context.Background(), cmd)
	require.Error(t, err)

	_, replayErr := bus.Dispatch(context.Background(), cmd)
	require.Error(t, replayErr)
	assert.Equal(t, err.Error(), replayErr.Error())
	assert.Equal(t, 1, base.calls)
}

func TestIdempotencySkipsCommandsWithoutKey(t *testing.T) {
	base := &countingBus{result: &idemResult{RentalID: "rnt-1"}}
	bus := ChainCommands(base, Idempotency(newMapStore(), JSONResultCodec{}))
	cmd := idemCommand{key: "booking.create_reservation"}

	_, err := bus.Dispatch(context.Background(), cmd)
	require.NoError(t, err)
	_, err = bus.Dispatch(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, 2, base.calls)
}
