// Package memory is an in-process implementation of every registry
// repository. A single coarse lock serializes transactions and a snapshot
// taken at transaction start is restored when the transaction fails.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/iota-uz/entity-registry/modules/registry/domain/audit"
	"github.com/iota-uz/entity-registry/modules/registry/domain/changerequest"
	"github.com/iota-uz/entity-registry/modules/registry/domain/consent"
	"github.com/iota-uz/entity-registry/modules/registry/domain/entity"
	wf "github.com/iota-uz/entity-registry/modules/registry/domain/workflow"
	"github.com/iota-uz/entity-registry/pkg/outbox"
)

type txKey struct{}

type tables struct {
	entities     map[uuid.UUID]entity.Entity
	stakeholders map[uuid.UUID][]entity.Stakeholder
	authorities  map[uuid.UUID]entity.Authority
	identities   map[entity.Holder]struct{}
	requests     map[uuid.UUID]changerequest.ChangeRequest
	requirements map[uuid.UUID][]consent.Requirement
	audit        []audit.Record
	instances    map[uuid.UUID]wf.Instance
	transitions  map[uuid.UUID][]wf.Transition
	events       []outbox.Message
}

func newTables() tables {
	return tables{
		entities:     map[uuid.UUID]entity.Entity{},
		stakeholders: map[uuid.UUID][]entity.Stakeholder{},
		authorities:  map[uuid.UUID]entity.Authority{},
		identities:   map[entity.Holder]struct{}{},
		requests:     map[uuid.UUID]changerequest.ChangeRequest{},
		requirements: map[uuid.UUID][]consent.Requirement{},
		instances:    map[uuid.UUID]wf.Instance{},
		transitions:  map[uuid.UUID][]wf.Transition{},
	}
}

func (t tables) clone() tables {
	out := newTables()
	for k, v := range t.entities {
		v.Officers = append(entity.Roster(nil), v.Officers...)
		out.entities[k] = v
	}
	for k, v := range t.stakeholders {
		out.stakeholders[k] = append([]entity.Stakeholder(nil), v...)
	}
	for k, v := range t.authorities {
		out.authorities[k] = v
	}
	for k := range t.identities {
		out.identities[k] = struct{}{}
	}
	for k, v := range t.requests {
		out.requests[k] = v
	}
	for k, v := range t.requirements {
		out.requirements[k] = append([]consent.Requirement(nil), v...)
	}
	out.audit = append([]audit.Record(nil), t.audit...)
	for k, v := range t.instances {
		out.instances[k] = v
	}
	for k, v := range t.transitions {
		out.transitions[k] = append([]wf.Transition(nil), v...)
	}
	out.events = append([]outbox.Message(nil), t.events...)
	return out
}

// Store holds all registry tables.
type Store struct {
	txMu sync.Mutex

	mu     sync.RWMutex
	data   tables
	faults map[string]error
}

func New() *Store {
	return &Store{data: newTables(), faults: map[string]error{}}
}

// InTx runs fn as one unit of work. Nested calls join the outer unit.
func (s *Store) InTx(ctx context.Context, fn func(context.Context) error) error {
	if owner, ok := ctx.Value(txKey{}).(*Store); ok && owner == s {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory: transaction aborted: %w", err)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// FailOn makes every later call of op return err until ClearFaults.
// Op names are "<repository>.<Method>", e.g. "entities.UpdateName".
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = map[string]error{}
}

// fault must be called with mu held.
func (s *Store) fault(op string) error {
	return s.faults[op]
}

func (s *Store) Entities() *EntityRepository { return &EntityRepository{s: s} }

func (s *Store) Identities() *IdentityRepository { return &IdentityRepository{s: s} }

func (s *Store) ChangeRequests() *ChangeRequestRepository { return &ChangeRequestRepository{s: s} }

func (s *Store) Consents() *ConsentRepository { return &ConsentRepository{s: s} }

func (s *Store) Audit() *AuditRepository { return &AuditRepository{s: s} }

func (s *Store) Workflow() *InstanceStore { return &InstanceStore{s: s} }

func (s *Store) Outbox() *OutboxRepository { return &OutboxRepository{s: s} }
