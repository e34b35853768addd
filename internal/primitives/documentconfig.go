package primitives

import (
	"fmt"
	"strings"
)

// DocumentConfig is the declarative source of a chart.
//
// States are the top-level states in document order. Initial names the
// top-level initial target(s); empty means the first top-level state.
type DocumentConfig struct {
	Name      string         `json:"name,omitempty" yaml:"name,omitempty"`
	Version   string         `json:"version,omitempty" yaml:"version,omitempty"`
	Initial   string         `json:"initial,omitempty" yaml:"initial,omitempty"`
	Datamodel string         `json:"datamodel,omitempty" yaml:"datamodel,omitempty"`
	Data      []DataConfig   `json:"data,omitempty" yaml:"data,omitempty"`
	Script    string         `json:"script,omitempty" yaml:"script,omitempty"`
	States    []*StateConfig `json:"states" yaml:"states"`
}

// InitialTargets splits Initial into target ids.
func (d *DocumentConfig) InitialTargets() []string {
	return strings.Fields(d.Initial)
}

// Walk visits every state in document order.
func (d *DocumentConfig) Walk(fn func(*StateConfig)) {
	for _, s := range d.States {
		s.Walk(fn)
	}
}

// Find returns the state with the given id, or nil.
func (d *DocumentConfig) Find(id string) *StateConfig {
	var found *StateConfig
	d.Walk(func(s *StateConfig) {
		if found == nil && s.ID == id {
			found = s
		}
	})
	return found
}

// Validate checks the document and every state locally.
func (d *DocumentConfig) Validate() error {
	if len(d.States) == 0 {
		return CloneError(ErrEmptyDocument, "", nil, map[string]any{"document": d.Name})
	}
	for i, s := range d.States {
		if s == nil {
			return CloneError(ErrInvalidConfig, fmt.Sprintf("top-level state %d is nil", i), nil, nil)
		}
		if s.Kind().IsHistory() {
			return CloneError(ErrInvalidConfig, fmt.Sprintf("history state %s cannot be top-level", s.ID), nil,
				map[string]any{"state": s.ID})
		}
		if err := s.Validate(); err != nil {
			return err
		}
	}
	for _, data := range d.Data {
		if strings.TrimSpace(data.ID) == "" {
			return CloneError(ErrInvalidConfig, "data declaration requires an id", nil, nil)
		}
	}
	return nil
}
