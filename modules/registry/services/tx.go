package services

import (
	"context"

	"github.com/iota-uz/entity-registry/pkg/composables"
)

// Transactor runs fn as one atomic unit of work. Implementations join an
// outer unit when ctx already carries one.
type Transactor interface {
	InTx(ctx context.Context, fn func(context.Context) error) error
}

// PgTransactor runs units of work on the pool bound to the context.
type PgTransactor struct{}

func (PgTransactor) InTx(ctx context.Context, fn func(context.Context) error) error {
	return composables.InTx(ctx, fn)
}

func inTx[T any](ctx context.Context, tx Transactor, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := tx.InTx(ctx, func(txCtx context.Context) error {
		var innerErr error
		out, innerErr = fn(txCtx)
		return innerErr
	})
	return out, err
}
