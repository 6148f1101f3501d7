package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/wI2L/jsondiff"

	"github.com/iota-uz/entity-registry/modules/registry/domain/audit"
	"github.com/iota-uz/entity-registry/modules/registry/domain/changerequest"
	"github.com/iota-uz/entity-registry/modules/registry/domain/entity"
)

// entityState is the audited view of an entity.
type entityState struct {
	Entity       entity.Entity        `json:"entity"`
	Stakeholders []entity.Stakeholder `json:"stakeholders"`
}

// commitDiff is the payload of a commit audit record.
type commitDiff struct {
	Before *entityState   `json:"before"`
	After  *entityState   `json:"after"`
	Patch  jsondiff.Patch `json:"patch"`
}

func newCommitDiff(before, after *entityState) (json.RawMessage, error) {
	var src, dst any = map[string]any{}, map[string]any{}
	if before != nil {
		src = before
	}
	if after != nil {
		dst = after
	}
	patch, err := jsondiff.Compare(src, dst)
	if err != nil {
		return nil, err
	}
	return json.Marshal(commitDiff{Before: before, After: after, Patch: patch})
}

type auditInput struct {
	Request        changerequest.ChangeRequest
	ActorID        uuid.UUID
	Action         string
	ResultingState string
	Comment        string
	Payload        json.RawMessage
	At             time.Time
}

func appendAudit(ctx context.Context, sink audit.Sink, in auditInput) error {
	rec := audit.Record{
		ID:             uuid.New(),
		RequestID:      in.Request.ID,
		ActorID:        in.ActorID,
		Action:         in.Action,
		ResultingState: in.ResultingState,
		Comment:        in.Comment,
		Payload:        in.Payload,
		CreatedAt:      in.At,
	}
	if in.Request.EntityID != nil {
		id := *in.Request.EntityID
		rec.EntityID = &id
	}
	return sink.Append(ctx, rec)
}
