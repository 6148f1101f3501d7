package outbox

import (
	"fmt"

	"github.com/jackc/pgx/v5"
)

const (
	insertSQL = `INSERT INTO %s (aggregate_id, topic, payload, event_id, available_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (event_id) DO UPDATE SET event_id = EXCLUDED.event_id
RETURNING sequence`

	claimSQL = `SELECT id, aggregate_id, topic, payload, event_id, sequence, attempts
FROM %s
WHERE published_at IS NULL
  AND available_at <= $1
  AND attempts < $2
  AND (locked_at IS NULL OR locked_at < $3)
ORDER BY available_at, sequence
LIMIT $4
FOR UPDATE SKIP LOCKED`

	lockSQL = `UPDATE %s SET locked_at = $1, attempts = attempts + 1 WHERE id = ANY($2)`

	ackSQL = `UPDATE %s SET published_at = now(), locked_at = NULL, last_error = NULL
WHERE id = $1 AND published_at IS NULL`

	retrySQL = `UPDATE %s SET locked_at = NULL, last_error = $2, available_at = $3
WHERE id = $1 AND published_at IS NULL`

	deadSQL = `UPDATE %s SET locked_at = NULL, last_error = $2, available_at = now()
WHERE id = $1 AND published_at IS NULL`

	depthSQL = `SELECT count(*), count(*) FILTER (WHERE locked_at IS NOT NULL)
FROM %s WHERE published_at IS NULL`

	purgePublishedSQL = `DELETE FROM %s WHERE published_at IS NOT NULL AND published_at < $1`

	purgeDeadSQL = `DELETE FROM %s WHERE published_at IS NULL AND attempts >= $1 AND created_at < $2`
)

// statements holds the queries of one outbox table.
type statements struct {
	insert         string
	claim          string
	lock           string
	ack            string
	retry          string
	dead           string
	depth          string
	purgePublished string
	purgeDead      string
}

func newStatements(table pgx.Identifier) statements {
	t := table.Sanitize()
	return statements{
		insert:         fmt.Sprintf(insertSQL, t),
		claim:          fmt.Sprintf(claimSQL, t),
		lock:           fmt.Sprintf(lockSQL, t),
		ack:            fmt.Sprintf(ackSQL, t),
		retry:          fmt.Sprintf(retrySQL, t),
		dead:           fmt.Sprintf(deadSQL, t),
		depth:          fmt.Sprintf(depthSQL, t),
		purgePublished: fmt.Sprintf(purgePublishedSQL, t),
		purgeDead:      fmt.Sprintf(purgeDeadSQL, t),
	}
}
