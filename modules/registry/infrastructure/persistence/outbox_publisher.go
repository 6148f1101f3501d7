package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/iota-uz/entity-registry/pkg/composables"
	"github.com/iota-uz/entity-registry/pkg/outbox"
)

// OutboxPublisher enqueues messages into the outbox table on the transaction
// bound to the context, so they commit together with the change.
type OutboxPublisher struct {
	publisher outbox.Publisher
	table     pgx.Identifier
}

func NewOutboxPublisher(table string) (*OutboxPublisher, error) {
	ident, err := outbox.ParseIdentifier(table)
	if err != nil {
		return nil, err
	}
	return &OutboxPublisher{publisher: outbox.NewPublisher(), table: ident}, nil
}

func (p *OutboxPublisher) Table() pgx.Identifier {
	return p.table
}

func (p *OutboxPublisher) Enqueue(ctx context.Context, msg outbox.Message) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	if _, err := p.publisher.Enqueue(ctx, tx, p.table, msg); err != nil {
		return errors.Wrap(err, "failed to enqueue outbox message")
	}
	return nil
}
