package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Cleaner periodically deletes published messages older than the retention
// window and, when configured, dead messages.
type Cleaner struct {
	pool  *pgxpool.Pool
	label string
	sql   statements
	opts  CleanerOptions
}

func NewCleaner(pool *pgxpool.Pool, table pgx.Identifier, opts CleanerOptions) (*Cleaner, error) {
	switch {
	case pool == nil:
		return nil, invalidConfig("pool is required")
	case len(table) == 0:
		return nil, invalidConfig("table is required")
	case opts.DeadRetention > 0 && opts.DeadAttemptsThreshold <= 0:
		return nil, invalidConfig("dead retention requires DeadAttemptsThreshold > 0")
	}
	return &Cleaner{
		pool:  pool,
		label: TableLabel(table),
		sql:   newStatements(table),
		opts:  opts.withDefaults(),
	}, nil
}

// Run returns immediately when the cleaner is disabled.
func (c *Cleaner) Run(ctx context.Context) error {
	if ctx == nil {
		return invalidConfig("ctx is required")
	}
	if !c.opts.Enabled {
		return nil
	}

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := c.purge(ctx, c.pool, time.Now()); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			c.opts.Logger.WithError(err).Warn("outbox: cleaner tick failed")
		}
	}
}

func (c *Cleaner) purge(ctx context.Context, db conn, now time.Time) error {
	var published, dead int64
	err := inTx(ctx, db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, c.sql.purgePublished, now.Add(-c.opts.Retention))
		if err != nil {
			return fmt.Errorf("outbox cleaner delete published: %w", err)
		}
		published = tag.RowsAffected()

		if c.opts.DeadRetention <= 0 {
			return nil
		}
		tag, err = tx.Exec(ctx, c.sql.purgeDead, c.opts.DeadAttemptsThreshold, now.Add(-c.opts.DeadRetention))
		if err != nil {
			return fmt.Errorf("outbox cleaner delete dead: %w", err)
		}
		dead = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return err
	}
	if published > 0 || dead > 0 {
		c.opts.Logger.WithFields(logrus.Fields{
			"table":     c.label,
			"published": published,
			"dead":      dead,
		}).Info("outbox: cleaner purged messages")
	}
	return nil
}
