package authz

import (
	"context"
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/sirupsen/logrus"
)

// Service provides helpers for enforcing authorization decisions.
type Service struct {
	cfg          Config
	enforcer     *casbin.Enforcer
	logger       *logrus.Entry
	flagProvider FlagProvider
	mu           sync.RWMutex
}

// NewService constructs a Service with the provided config.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.normalized()

	var logger *logrus.Entry
	if cfg.Logger != nil {
		logger = cfg.Logger.WithField("component", "authz")
	} else {
		logger = logrus.WithField("component", "authz")
	}

	enf, err := newEnforcer(cfg)
	if err != nil {
		return nil, fmt.Errorf("authz: failed to initialize enforcer: %w", err)
	}
	if len(cfg.Policies) > 0 {
		if _, err := enf.AddPolicies(cfg.Policies); err != nil {
			return nil, fmt.Errorf("authz: failed to add policies: %w", err)
		}
	}

	provider := cfg.FlagProvider
	if provider == nil {
		if cfg.FlagPath != "" {
			provider = NewFileFlagProvider(cfg.FlagPath, cfg.FlagMode)
		} else {
			provider = NewStaticFlagProvider(cfg.FlagMode)
		}
	}

	return &Service{
		cfg:          cfg,
		enforcer:     enf,
		logger:       logger,
		flagProvider: provider,
	}, nil
}

func newEnforcer(cfg Config) (*casbin.Enforcer, error) {
	var (
		m   model.Model
		err error
	)
	if cfg.ModelText != "" {
		m, err = model.NewModelFromString(cfg.ModelText)
	} else {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	}
	if err != nil {
		return nil, err
	}
	if cfg.PolicyPath == "" {
		return casbin.NewEnforcer(m)
	}
	enf, err := casbin.NewEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	if err != nil {
		return nil, err
	}
	if err := enf.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	return enf, nil
}

// Authorize returns an error if the request is denied.
func (s *Service) Authorize(ctx context.Context, req Request) error {
	mode := s.flagProvider.Mode()
	if mode == ModeDisabled {
		return nil
	}
	allowed, err := s.Check(ctx, req)
	if err != nil {
		return err
	}
	return s.decide(ctx, mode, req, allowed)
}

// AuthorizeRoles allows the request when any of roles is granted the action.
func (s *Service) AuthorizeRoles(ctx context.Context, roles []string, domain, object, action string) error {
	mode := s.flagProvider.Mode()
	if mode == ModeDisabled {
		return nil
	}
	req := NewRequest("", domain, object, action)
	allowed := false
	for _, role := range roles {
		req.Subject = SubjectForRole(role)
		ok, err := s.Check(ctx, req)
		if err != nil {
			return err
		}
		if ok {
			allowed = true
			break
		}
	}
	if !allowed {
		req.Subject = SubjectForRoles(roles)
	}
	return s.decide(ctx, mode, req, allowed)
}

func (s *Service) decide(ctx context.Context, mode Mode, req Request, allowed bool) error {
	recordDecision(mode, allowed)
	if allowed {
		return nil
	}
	fields := logrus.Fields{
		"subject": req.Subject,
		"domain":  req.Domain,
		"object":  req.Object,
		"action":  req.Action,
	}
	switch mode {
	case ModeEnforce:
		fields["mode"] = ModeEnforce
		s.logger.WithContext(ctx).WithFields(fields).Warn("authz denied request")
		return forbiddenError(req)
	case ModeShadow, ModeDisabled:
	default:
		s.logger.WithContext(ctx).WithField("mode", mode).Warn("authz: unknown flag mode, defaulting to shadow")
	}
	fields["mode"] = ModeShadow
	s.logger.WithContext(ctx).WithFields(fields).Warn("authz shadow deny")
	return nil
}

// Check evaluates a request without returning an authorization error.
func (s *Service) Check(ctx context.Context, req Request) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, err := s.enforcer.Enforce(req.Subject, req.Domain, req.Object, req.Action)
	if err != nil {
		return false, fmt.Errorf("authz: enforce failed: %w", err)
	}
	return res, nil
}

// Mode returns the current enforcement mode.
func (s *Service) Mode() Mode {
	return s.flagProvider.Mode()
}

// ReplacePolicies swaps the in-memory policy set.
func (s *Service) ReplacePolicies(ctx context.Context, policies [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enforcer.ClearPolicy()
	if len(policies) > 0 {
		if _, err := s.enforcer.AddPolicies(policies); err != nil {
			return fmt.Errorf("authz: replace policies failed: %w", err)
		}
	}
	s.logger.WithContext(ctx).WithField("policies", len(policies)).Info("authz policy replaced")
	return nil
}
