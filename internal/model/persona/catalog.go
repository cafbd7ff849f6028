package persona

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidCatalog = errors.New("invalid persona catalog")

type catalogFile struct {
	Personas []Persona `yaml:"personas"`
}

// LoadCatalog reads a YAML persona catalog that replaces the built-in seed.
func LoadCatalog(path string) ([]Persona, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona catalog %s: %w", path, err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes and validates a YAML persona catalog.
func ParseCatalog(raw []byte) ([]Persona, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := Validate(file.Personas); err != nil {
		return nil, err
	}
	return file.Personas, nil
}

// Validate checks the routing invariants a catalog must hold: unique ids,
// tutor and crisis present, and only the tutor declaring triggers.
func Validate(items []Persona) error {
	seen := make(map[string]bool, len(items))
	for _, p := range items {
		id := p.ID
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: persona without id", ErrInvalidCatalog)
		}
		if id != strings.TrimSpace(id) {
			return fmt.Errorf("%w: persona id %q has surrounding whitespace", ErrInvalidCatalog, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate persona %q", ErrInvalidCatalog, id)
		}
		seen[id] = true
		if strings.TrimSpace(p.Directive) == "" {
			return fmt.Errorf("%w: persona %q has no directive", ErrInvalidCatalog, id)
		}
		if strings.TrimSpace(p.Anchor) == "" {
			return fmt.Errorf("%w: persona %q has no anchor", ErrInvalidCatalog, id)
		}
		switch {
		case id == TutorID && !hasTrigger(p.Triggers):
			return fmt.Errorf("%w: %q must declare at least one trigger", ErrInvalidCatalog, TutorID)
		case id != TutorID && len(p.Triggers) > 0:
			return fmt.Errorf("%w: only %q may declare triggers, %q does", ErrInvalidCatalog, TutorID, id)
		}
	}
	for _, required := range []string{TutorID, CrisisID} {
		if !seen[required] {
			return fmt.Errorf("%w: missing %q persona", ErrInvalidCatalog, required)
		}
	}
	return nil
}

func hasTrigger(triggers []string) bool {
	for _, t := range triggers {
		if strings.TrimSpace(t) != "" {
			return true
		}
	}
	return false
}
