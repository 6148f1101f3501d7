package authz

import (
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config captures all inputs necessary to initialize the Casbin enforcer.
// The model comes either from ModelText or ModelPath; policies from
// PolicyPath, Policies, or both.
type Config struct {
	ModelText    string
	ModelPath    string
	PolicyPath   string
	Policies     [][]string
	FlagPath     string
	FlagMode     Mode
	Logger       *logrus.Logger
	FlagProvider FlagProvider
}

func (c Config) validate() error {
	if strings.TrimSpace(c.ModelText) == "" && c.ModelPath == "" {
		return configError("missing model")
	}
	if c.PolicyPath == "" && len(c.Policies) == 0 {
		return configError("missing policies")
	}
	if c.FlagPath == "" && c.FlagProvider == nil && c.FlagMode == "" {
		return configError("missing flag configuration")
	}
	for i, p := range c.Policies {
		if len(p) != 4 {
			return configError("policy %d has %d fields, expected 4", i, len(p))
		}
	}
	return nil
}

func (c Config) normalized() Config {
	if c.ModelPath != "" {
		c.ModelPath = filepath.Clean(c.ModelPath)
	}
	if c.PolicyPath != "" {
		c.PolicyPath = filepath.Clean(c.PolicyPath)
	}
	if c.FlagPath != "" {
		c.FlagPath = filepath.Clean(c.FlagPath)
	}
	return c
}

// RoleModel is a domain scoped RBAC model without role inheritance: a policy
// grants one role subject an action on an object inside a domain.
const RoleModel = `
[request_definition]
r = sub, dom, obj, act

[policy_definition]
p = sub, dom, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.dom == p.dom && (r.obj == p.obj || p.obj == "*") && (r.act == p.act || p.act == "*")
`
