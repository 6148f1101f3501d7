// Package outbox stores events in a Postgres table inside the writing
// transaction and relays them to a Dispatcher after commit.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/entity-registry/pkg/serrors"
)

var ErrInvalidConfig = serrors.NewError("OUTBOX_INVALID_CONFIG", "invalid outbox configuration")

func invalidConfig(msg string, args ...any) error {
	return fmt.Errorf("%w: "+msg, append([]any{ErrInvalidConfig}, args...)...)
}

// Message is the unit stored in the outbox table. AggregateID names the
// record the event is about.
type Message struct {
	AggregateID uuid.UUID
	Topic       string
	EventID     uuid.UUID
	Payload     json.RawMessage
}

func (m Message) Validate() error {
	switch {
	case m.AggregateID == uuid.Nil:
		return invalidConfig("aggregate_id is required")
	case m.EventID == uuid.Nil:
		return invalidConfig("event_id is required")
	case strings.TrimSpace(m.Topic) == "":
		return invalidConfig("topic is required")
	}
	return nil
}

// Meta travels with every delivery. EventID is stable across retries, so
// consumers deduplicate on it.
type Meta struct {
	Table       pgx.Identifier
	AggregateID uuid.UUID
	Topic       string
	EventID     uuid.UUID
	Sequence    int64
	Attempts    int
}

type DispatchedMessage struct {
	Meta    Meta
	Payload json.RawMessage
}

// Dispatcher delivers one message. A non-nil error schedules a retry.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg DispatchedMessage) error
}

var identPart = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ParseIdentifier parses "table" or "schema.table".
func ParseIdentifier(s string) (pgx.Identifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, invalidConfig("identifier is empty")
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return nil, invalidConfig("invalid identifier %q (expected table or schema.table)", s)
	}
	ident := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if !identPart.MatchString(p) {
			return nil, invalidConfig("invalid identifier %q (bad part %q)", s, p)
		}
		ident = append(ident, p)
	}
	return ident, nil
}

// TableLabel is the metric and log label of table.
func TableLabel(table pgx.Identifier) string {
	return strings.Join(table, ".")
}
