package commands

import (
	"context"
	"errors"
	"sync"
)

// Command is a state-changing request routed through the bus.
type Command interface {
	Key() string
}

// Handler processes one command type and produces a result.
type Handler[C Command, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

// Bus routes commands to registered handlers.
type Bus interface {
	Dispatch(ctx context.Context, cmd Command) (any, error)
}

var (
	ErrHandlerNotFound   = errors.New("commands: handler not found")
	ErrInvalidCommand    = errors.New("commands: invalid command for handler")
	ErrResultType        = errors.New("commands: result type mismatch")
	ErrNilBus            = errors.New("commands: nil bus")
	ErrDuplicateHandler  = errors.New("commands: handler already registered for key")
)

// Registry is the in-process bus implementation.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]func(ctx context.Context, cmd Command) (any, error)
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]func(ctx context.Context, cmd Command) (any, error))}
}

// Register binds a typed handler to the command key of C.
func Register[C Command, R any](reg *Registry, handler Handler[C, R]) error {
	var zero C
	key := zero.Key()
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, exists := reg.handlers[key]; exists {
		return ErrDuplicateHandler
	}
	reg.handlers[key] = func(ctx context.Context, cmd Command) (any, error) {
		typed, ok := cmd.(C)
		if !ok {
			return nil, ErrInvalidCommand
		}
		return handler.Handle(ctx, typed)
	}
	return nil
}

// MustRegister panics on duplicate registration; wiring errors are programmer errors.
func MustRegister[C Command, R any](reg *Registry, handler Handler[C, R]) {
	if err := Register(reg, handler); err != nil {
		panic(err)
	}
}

func (r *Registry) Dispatch(ctx context.Context, cmd Command) (any, error) {
	r.mu.RLock()
	fn, ok := r.handlers[cmd.Key()]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrHandlerNotFound
	}
	return fn(ctx, cmd)
}

// Dispatch runs the command through the bus returning a typed result.
func Dispatch[C Command, R any](ctx context.Context, bus Bus, cmd C) (R, error) {
	var zero R
	if bus == nil {
		return zero, ErrNilBus
	}
	res, err := bus.Dispatch(ctx, cmd)
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	value, ok := res.(R)
	if !ok {
		return zero, ErrResultType
	}
	return value, nil
}
