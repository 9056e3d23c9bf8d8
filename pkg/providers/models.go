package providers

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ModelMetadata describes a model's context window and budget defaults. Nil
// fields are unknown.
type ModelMetadata struct {
	Name                      string   `yaml:"name"`
	Provider                  string   `yaml:"provider,omitempty"`
	MaxContextTokens          *int     `yaml:"max_context_tokens,omitempty"`
	DefaultMaxOutputTokens    *int     `yaml:"default_max_output_tokens,omitempty"`
	DefaultCompactionRatio    *float64 `yaml:"default_compaction_ratio,omitempty"`
	DefaultSafetyMarginTokens *int     `yaml:"default_safety_margin_tokens,omitempty"`
}

type modelCatalogFile struct {
	Models []ModelMetadata `yaml:"models"`
}

// ModelCatalog resolves model names to metadata. Lookups accept
// OpenRouter-style "vendor/model" names.
type ModelCatalog struct {
	mu     sync.RWMutex
	models map[string]ModelMetadata
}

func intPtr(v int) *int { return &v }

func builtinModels() []ModelMetadata {
	return []ModelMetadata{
		{Name: "gpt-4o", Provider: ProviderOpenAI, MaxContextTokens: intPtr(128000), DefaultMaxOutputTokens: intPtr(16384)},
		{Name: "gpt-4o-mini", Provider: ProviderOpenAI, MaxContextTokens: intPtr(128000), DefaultMaxOutputTokens: intPtr(16384)},
		{Name: "gpt-4.1", Provider: ProviderOpenAI, MaxContextTokens: intPtr(1047576), DefaultMaxOutputTokens: intPtr(32768)},
		{Name: "gpt-5", Provider: ProviderOpenAI, MaxContextTokens: intPtr(400000), DefaultMaxOutputTokens: intPtr(128000)},
		{Name: "gpt-5-mini", Provider: ProviderOpenAI, MaxContextTokens: intPtr(400000), DefaultMaxOutputTokens: intPtr(128000)},
		{Name: "claude-sonnet-4-5", Provider: ProviderAnthropic, MaxContextTokens: intPtr(200000), DefaultMaxOutputTokens: intPtr(64000)},
		{Name: "claude-opus-4-1", Provider: ProviderAnthropic, MaxContextTokens: intPtr(200000), DefaultMaxOutputTokens: intPtr(32000)},
		{Name: "gemini-2.5-pro", Provider: ProviderGemini, MaxContextTokens: intPtr(1048576), DefaultMaxOutputTokens: intPtr(65536)},
		{Name: "gemini-2.5-flash", Provider: ProviderGemini, MaxContextTokens: intPtr(1048576), DefaultMaxOutputTokens: intPtr(65536)},
		{Name: "mistral-large-latest", Provider: ProviderMistral, MaxContextTokens: intPtr(131072), DefaultMaxOutputTokens: intPtr(8192)},
		{Name: "llama3.1", Provider: ProviderOllama, MaxContextTokens: intPtr(131072), DefaultMaxOutputTokens: intPtr(4096)},
	}
}

// NewModelCatalog returns a catalog holding the built-in model table.
func NewModelCatalog() *ModelCatalog {
	c := &ModelCatalog{models: map[string]ModelMetadata{}}
	for _, m := range builtinModels() {
		c.models[catalogKey(m.Name)] = m
	}
	return c
}

// LoadModelCatalog returns the built-in catalog overlaid with the YAML file
// at path. An empty path yields the built-ins.
func LoadModelCatalog(path string) (*ModelCatalog, error) {
	c := NewModelCatalog()
	if strings.TrimSpace(path) == "" {
		return c, nil
	}
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return nil, fmt.Errorf("read model catalog %s: %w", path, err)
	}
	if err := c.Merge(data); err != nil {
		return nil, fmt.Errorf("parse model catalog %s: %w", path, err)
	}
	return c, nil
}

// Merge overlays YAML entries. An entry replaces a built-in of the same name.
func (c *ModelCatalog) Merge(data []byte) error {
	var file modelCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range file.Models {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("models[%d]: name is required", i)
		}
		if m.DefaultCompactionRatio != nil && (*m.DefaultCompactionRatio <= 0 || *m.DefaultCompactionRatio > 1) {
			return fmt.Errorf("models[%d] %s: default_compaction_ratio must be in (0, 1]", i, m.Name)
		}
		c.models[catalogKey(m.Name)] = m
	}
	return nil
}

// Lookup returns a copy of the metadata for name, trying the full name first
// and then the part after the last "/".
func (c *ModelCatalog) Lookup(name string) (*ModelMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key := catalogKey(name)
	if m, ok := c.models[key]; ok {
		return &m, true
	}
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		if m, ok := c.models[key[idx+1:]]; ok {
			return &m, true
		}
	}
	return nil, false
}

func (c *ModelCatalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.models))
	for _, m := range c.models {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names
}

func catalogKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
