package composables

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

type lockTimeoutKey struct{}

// WithLockTimeout bounds how long statements in transactions opened from ctx
// wait for row locks.
func WithLockTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, lockTimeoutKey{}, d)
}

func UseLockTimeout(ctx context.Context) (time.Duration, bool) {
	d, ok := ctx.Value(lockTimeoutKey{}).(time.Duration)
	if !ok || d <= 0 {
		return 0, false
	}
	return d, true
}

func ApplyLockTimeout(ctx context.Context, tx pgx.Tx) error {
	d, ok := UseLockTimeout(ctx)
	if !ok {
		return nil
	}
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", ms)); err != nil {
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}
	return nil
}
