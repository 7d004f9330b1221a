package persona

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Store exposes assistant profile retrieval.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied profiles.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns the known profiles.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a profile by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

type profileFile struct {
	Assistants []Persona `yaml:"assistants"`
}

// LoadFile reads assistant profiles from a YAML document of the form
// `assistants: [...]`. Missing canned lines fall back to the seeded profile.
func LoadFile(path string) ([]Persona, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read assistant profiles: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML profile document.
func Parse(raw []byte) ([]Persona, error) {
	var doc profileFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode assistant profiles: %w", err)
	}

	seen := make(map[string]bool, len(doc.Assistants))
	out := make([]Persona, 0, len(doc.Assistants))
	for _, p := range doc.Assistants {
		if p.ID == "" {
			return nil, errors.New("assistant profile without id")
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate assistant profile %q", p.ID)
		}
		seen[p.ID] = true
		out = append(out, p.WithDefaults())
	}
	return out, nil
}

// Merge returns base with overrides replacing profiles of the same ID and
// new profiles appended.
func Merge(base, overrides []Persona) []Persona {
	out := append([]Persona(nil), base...)
	for _, o := range overrides {
		replaced := false
		for i := range out {
			if out[i].ID == o.ID {
				out[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, o)
		}
	}
	return out
}
