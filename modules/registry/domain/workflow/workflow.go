package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/entity-registry/modules/registry/domain/actor"
)

// Action keys of the entity change definition.
const (
	ActionRouteToReview  = "route_to_review"
	ActionApprove        = "approve"
	ActionReject         = "reject"
	ActionRequestChanges = "request_changes"
	ActionResubmit       = "resubmit"
	ActionCancel         = "cancel"
)

// States of the entity change definition.
const (
	StateSubmitted    = "submitted"
	StateUnderReview  = "under_review"
	StateNeedsChanges = "needs_changes"
	StateApproved     = "approved"
	StateRejected     = "rejected"
	StateCancelled    = "cancelled"
)

const TargetChangeRequest = "change_request"

var (
	ErrInstanceNotFound   = errors.New("workflow instance not found")
	ErrDefinitionNotFound = errors.New("workflow definition not found")
	ErrActionNotAllowed   = errors.New("action not allowed in current state")
	ErrRoleNotAllowed     = errors.New("actor roles do not permit action")
	ErrInstanceFinished   = errors.New("workflow instance is finished")
)

type Instance struct {
	ID             uuid.UUID      `json:"id"`
	DefinitionCode string         `json:"definition_code"`
	TargetType     string         `json:"target_type"`
	TargetID       uuid.UUID      `json:"target_id"`
	State          string         `json:"state"`
	Finished       bool           `json:"finished"`
	Vars           map[string]any `json:"vars,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type TransitionResult struct {
	InstanceID uuid.UUID `json:"instance_id"`
	Action     string    `json:"action"`
	FromState  string    `json:"from_state"`
	NextState  string    `json:"next_state"`
	Finished   bool      `json:"finished"`
}

// Transition is one entry of an instance history.
type Transition struct {
	ID         uuid.UUID       `json:"id"`
	InstanceID uuid.UUID       `json:"instance_id"`
	Action     string          `json:"action"`
	FromState  string          `json:"from_state"`
	ToState    string          `json:"to_state"`
	ActorID    uuid.UUID       `json:"actor_id"`
	Comment    string          `json:"comment,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Engine is the state machine the change request service drives.
type Engine interface {
	CreateInstance(ctx context.Context, definitionCode, targetType string, targetID uuid.UUID, vars map[string]any) (Instance, error)
	PerformAction(ctx context.Context, instanceID uuid.UUID, actionKey string, act actor.Actor, comment string, payload json.RawMessage) (TransitionResult, error)
	GetInstance(ctx context.Context, instanceID uuid.UUID) (Instance, error)
	History(ctx context.Context, instanceID uuid.UUID) ([]Transition, error)
}
