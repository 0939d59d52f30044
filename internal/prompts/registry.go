// Package prompts holds the per fortune type prompt, response schema,
// fallback payload and pool dimensions, loaded from an embedded YAML file.
package prompts

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed fortunes.yaml
var embedded []byte

// ErrMissingKeys is returned by Validate when a payload lacks required keys.
var ErrMissingKeys = errors.New("prompts: payload is missing required keys")

// PoolSpec describes how batch pre-generation enumerates cohorts of a type.
type PoolSpec struct {
	TargetSize   int                 `yaml:"target_size"`
	MaxSize      int                 `yaml:"max_size"`
	Dimensions   []string            `yaml:"dimensions"`
	Values       map[string][]string `yaml:"values"`
	Placeholders []string            `yaml:"placeholders"`
}

// Fortune is the registry entry of one fortune type.
type Fortune struct {
	Type        string         `yaml:"-"`
	System      string         `yaml:"system"`
	Schema      map[string]any `yaml:"schema"`
	Required    []string       `yaml:"required"`
	Premium     []string       `yaml:"premium"`
	Fallback    map[string]any `yaml:"fallback"`
	Temperature float32        `yaml:"temperature"`
	MaxTokens   int            `yaml:"max_tokens"`
	Pool        *PoolSpec      `yaml:"pool"`
}

type document struct {
	Version  string `yaml:"version"`
	Defaults struct {
		Temperature float32 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
	} `yaml:"defaults"`
	Aliases  map[string]string   `yaml:"aliases"`
	Generic  Fortune             `yaml:"generic"`
	Fortunes map[string]*Fortune `yaml:"fortunes"`
}

// Registry resolves fortune types to their prompt entries.
type Registry struct {
	version  string
	aliases  map[string]string
	generic  Fortune
	fortunes map[string]*Fortune
}

// Load parses the embedded registry.
func Load() (*Registry, error) {
	return Parse(embedded)
}

// Parse builds a registry from a YAML document.
func Parse(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("prompts: parse registry: %w", err)
	}
	if doc.Version == "" {
		return nil, errors.New("prompts: registry version is required")
	}
	if strings.TrimSpace(doc.Generic.System) == "" {
		return nil, errors.New("prompts: generic entry needs a system prompt")
	}

	applyDefaults := func(f *Fortune) {
		if f.Temperature <= 0 {
			f.Temperature = doc.Defaults.Temperature
		}
		if f.MaxTokens <= 0 {
			f.MaxTokens = doc.Defaults.MaxTokens
		}
	}

	applyDefaults(&doc.Generic)
	for name, f := range doc.Fortunes {
		if f == nil {
			return nil, fmt.Errorf("prompts: entry %q is empty", name)
		}
		if strings.TrimSpace(f.System) == "" {
			return nil, fmt.Errorf("prompts: entry %q needs a system prompt", name)
		}
		if len(f.Fallback) == 0 {
			return nil, fmt.Errorf("prompts: entry %q needs a fallback payload", name)
		}
		for _, key := range f.Required {
			if _, ok := f.Fallback[key]; !ok {
				return nil, fmt.Errorf("prompts: fallback of %q lacks required key %q", name, key)
			}
		}
		f.Type = name
		applyDefaults(f)
	}
	for alias, target := range doc.Aliases {
		if _, ok := doc.Fortunes[target]; !ok {
			return nil, fmt.Errorf("prompts: alias %q points to unknown entry %q", alias, target)
		}
	}

	return &Registry{
		version:  doc.Version,
		aliases:  doc.Aliases,
		generic:  doc.Generic,
		fortunes: doc.Fortunes,
	}, nil
}

// Version identifies the prompt set. It is part of every exact cache key.
func (r *Registry) Version() string { return r.version }

// Lookup returns the dedicated entry of fortuneType, following aliases.
func (r *Registry) Lookup(fortuneType string) (*Fortune, bool) {
	f, ok := r.fortunes[r.Canonical(fortuneType)]
	return f, ok
}

// Canonical resolves an alias to the entry name it points to.
func (r *Registry) Canonical(fortuneType string) string {
	if target, ok := r.aliases[fortuneType]; ok {
		return target
	}
	return fortuneType
}

// Get returns the dedicated entry of fortuneType or the generic entry.
func (r *Registry) Get(fortuneType string) *Fortune {
	if f, ok := r.Lookup(fortuneType); ok {
		return f
	}
	g := r.generic
	g.Type = fortuneType
	return &g
}

// Types lists the fortune types with a dedicated entry, aliases excluded.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.fortunes))
	for k := range r.fortunes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// UserPrompt asks for a result for the described cohort in the entry's schema.
func (f *Fortune) UserPrompt(fortuneType, description string) (string, error) {
	schema, err := json.MarshalIndent(f.Schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("prompts: marshal schema of %q: %w", fortuneType, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "다음 특성을 가진 사용자를 위한 %s 인사이트를 생성해주세요.\n\n", fortuneType)
	if description != "" {
		fmt.Fprintf(&b, "사용자 특성: %s\n\n", description)
	}
	b.WriteString("중요 사항:\n")
	b.WriteString("1. 모든 플레이스홀더({{userName}}, {{age}} 등)는 그대로 유지하세요.\n")
	b.WriteString("2. 아래 JSON 스키마를 정확히 따르세요.\n")
	b.WriteString("3. 응답은 유효한 JSON만 반환하세요.\n\n")
	b.WriteString("응답 스키마:\n")
	b.Write(schema)
	return b.String(), nil
}

// Validate checks that payload carries every required key with a non-null value.
func (f *Fortune) Validate(payload map[string]any) error {
	var missing []string
	for _, key := range f.Required {
		if v, ok := payload[key]; !ok || v == nil {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingKeys, strings.Join(missing, ", "))
	}
	return nil
}

// FallbackPayload returns a fresh copy of the fallback with JSON number types.
func (f *Fortune) FallbackPayload() map[string]any {
	raw, err := json.Marshal(f.Fallback)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}
