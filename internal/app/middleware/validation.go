package middleware

import (
	"context"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/queries"
)

type Validator interface {
	Validate(ctx context.Context, message any) error
}

// SelfValidating commands and queries carry their own input checks; the
// default validator simply invokes them.
type SelfValidating interface {
	Validate() error
}

// SelfValidation runs Validate on messages implementing SelfValidating.
type SelfValidation struct{}

func (SelfValidation) Validate(ctx context.Context, message any) error {
	if sv, ok := message.(SelfValidating); ok {
		return sv.Validate()
	}
	return nil
}

func Validation(v Validator) CommandMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := v.Validate(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryValidation(v Validator) QueryMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := v.Validate(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}
