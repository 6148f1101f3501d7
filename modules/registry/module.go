package registry

import (
	"fmt"
	"strings"

	"github.com/iota-uz/entity-registry/modules/registry/handlers"
	"github.com/iota-uz/entity-registry/modules/registry/infrastructure/persistence"
	"github.com/iota-uz/entity-registry/modules/registry/infrastructure/workflow"
	"github.com/iota-uz/entity-registry/modules/registry/services"
	"github.com/iota-uz/entity-registry/pkg/application"
	"github.com/iota-uz/entity-registry/pkg/authz"
	"github.com/iota-uz/entity-registry/pkg/configuration"
)

type ModuleOptions struct {
	Workflow configuration.WorkflowOptions
	Outbox   configuration.OutboxOptions
}

func NewModule(opts *ModuleOptions) application.Module {
	if opts == nil {
		opts = &ModuleOptions{}
	}
	return &Module{options: opts}
}

type Module struct {
	options *ModuleOptions
}

func (m *Module) Register(app application.Application) error {
	def, err := m.definition()
	if err != nil {
		return err
	}

	mode := authz.ModeEnforce
	if raw := strings.TrimSpace(m.options.Workflow.AuthzMode); raw != "" {
		mode = authz.ParseMode(raw)
	}
	engineOpts := []workflow.EngineOption{workflow.WithLogger(app.Logger())}
	if path := strings.TrimSpace(m.options.Workflow.AuthzFlagPath); path != "" {
		engineOpts = append(engineOpts, workflow.WithAuthzFlagFile(path))
	}
	engine, err := workflow.NewEngine(
		persistence.NewWorkflowStore(),
		mode,
		[]workflow.Definition{def},
		engineOpts...,
	)
	if err != nil {
		return err
	}

	var events services.EventPublisher
	if m.options.Outbox.Enabled {
		publisher, err := persistence.NewOutboxPublisher(m.options.Outbox.Table)
		if err != nil {
			return err
		}
		events = publisher
	}

	entities := persistence.NewEntityRepository()
	identities := persistence.NewIdentityRepository()
	auditRepo := persistence.NewAuditRepository()
	app.RegisterServices(
		services.NewChangeRequestService(services.Dependencies{
			Tx:             services.PgTransactor{},
			Requests:       persistence.NewChangeRequestRepository(),
			Consents:       persistence.NewConsentRepository(),
			Entities:       entities,
			Identities:     identities,
			Audit:          auditRepo,
			Outbox:         events,
			Engine:         engine,
			EventBus:       app.EventPublisher(),
			Logger:         app.Logger(),
			DefinitionCode: def.Code,
		}),
		entities,
		identities,
		auditRepo,
	)

	handlers.RegisterEventHandlers(app)
	return nil
}

func (m *Module) definition() (workflow.Definition, error) {
	def := workflow.DefaultDefinition()
	if path := strings.TrimSpace(m.options.Workflow.DefinitionPath); path != "" {
		loaded, err := workflow.LoadDefinitionFile(path)
		if err != nil {
			return workflow.Definition{}, err
		}
		def = loaded
	}
	if code := strings.TrimSpace(m.options.Workflow.DefinitionCode); code != "" && code != def.Code {
		return workflow.Definition{}, fmt.Errorf("registry: workflow definition %q does not match configured code %q", def.Code, code)
	}
	return def, nil
}

func (m *Module) Name() string {
	return "registry"
}
