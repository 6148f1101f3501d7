package outbox

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// conn is the part of *pgxpool.Pool and *pgxpool.Conn the relay uses.
type conn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Relay delivers the unpublished messages of one outbox table. Claims use
// FOR UPDATE SKIP LOCKED, so relays may share a table; with SingleActive
// only the holder of the table's advisory lock polls.
type Relay struct {
	pool       *pgxpool.Pool
	table      pgx.Identifier
	label      string
	sql        statements
	dispatcher Dispatcher
	opts       RelayOptions
	retry      retryPolicy
	lockKey    int64
	m          *metrics
}

func NewRelay(pool *pgxpool.Pool, table pgx.Identifier, dispatcher Dispatcher, opts RelayOptions) (*Relay, error) {
	switch {
	case pool == nil:
		return nil, invalidConfig("pool is required")
	case len(table) == 0:
		return nil, invalidConfig("table is required")
	case dispatcher == nil:
		return nil, invalidConfig("dispatcher is required")
	}
	return newRelay(pool, table, dispatcher, opts), nil
}

func newRelay(pool *pgxpool.Pool, table pgx.Identifier, dispatcher Dispatcher, opts RelayOptions) *Relay {
	opts = opts.withDefaults()
	label := TableLabel(table)
	return &Relay{
		pool:       pool,
		table:      table,
		label:      label,
		sql:        newStatements(table),
		dispatcher: dispatcher,
		opts:       opts,
		retry:      retryPolicy{maxBackoff: opts.MaxBackoff, jitterMax: opts.JitterMax, rand: opts.Rand},
		lockKey:    advisoryLockKey("outbox:" + label),
		m:          getMetrics(),
	}
}

// Run polls until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	if ctx == nil {
		return invalidConfig("ctx is required")
	}
	if !r.opts.SingleActive {
		r.m.leader(r.label, true)
		return r.poll(ctx, r.pool)
	}
	for {
		c, err := r.pool.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.opts.Logger.WithError(err).Warn("outbox: failed to acquire connection for single-active relay")
		} else if led, err := r.lead(ctx, c); led {
			return err
		}
		if err := sleep(ctx, r.opts.PollInterval); err != nil {
			return err
		}
	}
}

// lead polls on c while holding the table's advisory lock. It reports false
// when another process holds the lock.
func (r *Relay) lead(ctx context.Context, c *pgxpool.Conn) (bool, error) {
	defer c.Release()

	var ok bool
	if err := c.QueryRow(ctx, `SELECT pg_try_advisory_lock($1::bigint)`, r.lockKey).Scan(&ok); err != nil {
		r.opts.Logger.WithError(err).Warn("outbox: failed to attempt advisory lock")
		return false, nil
	}
	r.m.leader(r.label, ok)
	if !ok {
		return false, nil
	}

	r.opts.Logger.Info("outbox: relay became leader")
	err := r.poll(ctx, c)
	if _, unlockErr := c.Exec(context.Background(), `SELECT pg_advisory_unlock($1::bigint)`, r.lockKey); unlockErr != nil {
		r.opts.Logger.WithError(unlockErr).Warn("outbox: failed to release advisory lock")
	}
	r.m.leader(r.label, false)
	return true, err
}

func (r *Relay) poll(ctx context.Context, db conn) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	var depthAt time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if now := time.Now(); !now.Before(depthAt) {
			if err := r.observeDepth(ctx, db); err != nil {
				r.opts.Logger.WithError(err).Debug("outbox: observe queue depth failed")
			}
			depthAt = now.Add(r.opts.ObserveQueueDepthEvery)
		}

		if _, err := r.tick(ctx, db); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.opts.Logger.WithError(err).Warn("outbox: process tick failed")
		}
	}
}

type claimed struct {
	id          uuid.UUID
	aggregateID uuid.UUID
	topic       string
	payload     []byte
	eventID     uuid.UUID
	sequence    int64
	attempts    int
}

func (c claimed) fields() logrus.Fields {
	return logrus.Fields{
		"topic":        c.topic,
		"event_id":     c.eventID,
		"aggregate_id": c.aggregateID,
		"sequence":     c.sequence,
		"attempts":     c.attempts,
	}
}

// tick claims one batch and settles every message in it. It returns the
// size of the batch.
func (r *Relay) tick(ctx context.Context, db conn) (int, error) {
	batch, err := r.claim(ctx, db, time.Now())
	if err != nil {
		return 0, err
	}
	for _, c := range batch {
		r.deliver(ctx, db, c)
	}
	return len(batch), nil
}

func (r *Relay) claim(ctx context.Context, db conn, now time.Time) ([]claimed, error) {
	var batch []claimed
	err := inTx(ctx, db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, r.sql.claim, now, r.opts.MaxAttempts, now.Add(-r.opts.LockTTL), r.opts.BatchSize)
		if err != nil {
			return fmt.Errorf("outbox claim select: %w", err)
		}
		defer rows.Close()

		ids := make([]uuid.UUID, 0, r.opts.BatchSize)
		for rows.Next() {
			var c claimed
			if err := rows.Scan(&c.id, &c.aggregateID, &c.topic, &c.payload, &c.eventID, &c.sequence, &c.attempts); err != nil {
				return fmt.Errorf("outbox claim scan: %w", err)
			}
			c.attempts++
			batch = append(batch, c)
			ids = append(ids, c.id)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("outbox claim rows: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, r.sql.lock, now, pgtype.FlatArray[uuid.UUID](ids)); err != nil {
			return fmt.Errorf("outbox claim update: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// deliver dispatches c and records the outcome: published, rescheduled
// with backoff, or left dead once MaxAttempts is reached.
func (r *Relay) deliver(ctx context.Context, db conn, c claimed) {
	dispatchCtx, cancel := context.WithTimeout(ctx, r.opts.DispatchTimeout)
	start := time.Now()
	err := r.dispatcher.Dispatch(dispatchCtx, DispatchedMessage{
		Meta: Meta{
			Table:       r.table,
			AggregateID: c.aggregateID,
			Topic:       c.topic,
			EventID:     c.eventID,
			Sequence:    c.sequence,
			Attempts:    c.attempts,
		},
		Payload: c.payload,
	})
	cancel()
	r.m.dispatched(r.label, c.topic, err, time.Since(start))

	log := r.opts.Logger.WithFields(c.fields())
	var settleErr error
	switch {
	case err == nil:
		_, settleErr = db.Exec(ctx, r.sql.ack, c.id)
	case c.attempts >= r.opts.MaxAttempts:
		r.m.deadLettered(r.label, c.topic)
		log.WithError(err).Error("outbox: message exhausted its attempts")
		_, settleErr = db.Exec(ctx, r.sql.dead, c.id, truncateError(err, r.opts.LastErrorMaxLen))
	default:
		log.WithError(err).Debug("outbox: dispatch failed, rescheduling")
		next := time.Now().Add(r.retry.delay(c.attempts))
		_, settleErr = db.Exec(ctx, r.sql.retry, c.id, truncateError(err, r.opts.LastErrorMaxLen), next)
	}
	if settleErr != nil {
		log.WithError(settleErr).Warn("outbox: failed to record dispatch outcome")
	}
}

func (r *Relay) observeDepth(ctx context.Context, db conn) error {
	var pending, locked int64
	if err := db.QueryRow(ctx, r.sql.depth).Scan(&pending, &locked); err != nil {
		return fmt.Errorf("outbox queue depth: %w", err)
	}
	r.m.depth(r.label, pending, locked)
	return nil
}

func inTx(ctx context.Context, db conn, fn func(pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func advisoryLockKey(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}
