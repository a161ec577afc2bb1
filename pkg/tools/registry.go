// Package tools loads and indexes the tool registry a plan compiles against.
// The registry maps tool names to their invocation resource identifiers and
// declared parameter schemas, as produced by tool onboarding.
package tools

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Parameter describes a single declared tool parameter.
type Parameter struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type,omitempty" json:"type,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`
}

// Tool describes a callable tool: its identity, the resource the state
// machine invokes, and its parameter schema.
type Tool struct {
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Resource    string      `yaml:"resource" json:"resource"`
	Parameters  []Parameter `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// HasParameter reports whether the tool declares a parameter with the
// given name.
func (t *Tool) HasParameter(name string) bool {
	for _, p := range t.Parameters {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Registry indexes tools by name.
type Registry struct {
	tools map[string]*Tool
}

// New builds a registry from a tool list. Later duplicates win.
func New(list []Tool) *Registry {
	r := &Registry{tools: make(map[string]*Tool, len(list))}
	for i := range list {
		t := list[i]
		r.tools[t.Name] = &t
	}
	return r
}

// Load reads a registry from a YAML or JSON file. The file holds either a
// bare tool list or a mapping with a top-level "tools" key.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tool registry: %w", err)
	}
	return Parse(data)
}

// Parse decodes registry content from YAML or JSON bytes.
func Parse(data []byte) (*Registry, error) {
	var list []Tool
	if err := yaml.Unmarshal(data, &list); err == nil && len(list) > 0 {
		return New(list), nil
	}

	var doc struct {
		Tools []Tool `yaml:"tools" json:"tools"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing tool registry: %w", err)
	}
	if len(doc.Tools) == 0 {
		return nil, fmt.Errorf("tool registry is empty")
	}
	return New(doc.Tools), nil
}

// Lookup returns the tool with the given name.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Resource returns the resource identifier for a tool, or "" if unknown.
func (r *Registry) Resource(name string) string {
	if t, ok := r.tools[name]; ok {
		return t.Resource
	}
	return ""
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}
