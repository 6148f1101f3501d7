package authz

import (
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Mode is the enforcement mode. Shadow evaluates policies and logs denials
// without refusing the request.
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeShadow   Mode = "shadow"
	ModeEnforce  Mode = "enforce"
)

type FlagProvider interface {
	Mode() Mode
}

type StaticFlagProvider struct {
	mode Mode
}

func NewStaticFlagProvider(mode Mode) StaticFlagProvider {
	return StaticFlagProvider{mode: ParseMode(string(mode))}
}

func (s StaticFlagProvider) Mode() Mode {
	return s.mode
}

// FileFlagProvider reads the mode from a YAML document ("mode: enforce") on
// every call, so operators can switch modes without a restart. A missing
// file, a broken document or an unknown mode leaves the last good mode in
// effect.
type FileFlagProvider struct {
	path     string
	fallback Mode

	mu   sync.Mutex
	last Mode
}

func NewFileFlagProvider(path string, fallback Mode) FlagProvider {
	return &FileFlagProvider{path: path, fallback: ParseMode(string(fallback))}
}

func (p *FileFlagProvider) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.last == "" {
		p.last = p.fallback
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return p.last
	}
	var doc struct {
		Mode string `yaml:"mode"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return p.last
	}
	if mode, ok := LookupMode(doc.Mode); ok {
		p.last = mode
	}
	return p.last
}

// LookupMode parses raw case-insensitively and reports whether it names a
// known mode.
func LookupMode(raw string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeDisabled:
		return ModeDisabled, true
	case ModeShadow:
		return ModeShadow, true
	case ModeEnforce:
		return ModeEnforce, true
	}
	return "", false
}

// ParseMode is LookupMode defaulting to shadow.
func ParseMode(raw string) Mode {
	if mode, ok := LookupMode(raw); ok {
		return mode
	}
	return ModeShadow
}
