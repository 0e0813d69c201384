// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package feature

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/backlog/lib/depgraph"
)

// Feature is one unit of work in the backlog.
type Feature struct {
	// ID is assigned by the store and never reused.
	ID int64 `json:"id"`

	// Priority orders work: lower is more urgent. New features and
	// skipped features receive the current maximum plus one.
	Priority int `json:"priority"`

	// Category groups related features (e.g., "auth", "ui").
	Category string `json:"category"`

	// Name is a short summary.
	Name string `json:"name"`

	// Description explains what the feature must do.
	Description string `json:"description"`

	// Steps are the verification steps that demonstrate the feature
	// works.
	Steps []string `json:"steps"`

	// Dependencies are the IDs of features that must pass before this
	// one can be started, sorted ascending.
	Dependencies []int64 `json:"dependencies"`

	// Passes is set once the feature has been verified.
	Passes bool `json:"passes"`

	// InProgress is set while a worker has claimed the feature.
	InProgress bool `json:"in_progress"`
}

// Validate checks required fields and the structural invariants on
// dependencies: no self-dependency, no duplicates, and at most
// depgraph.MaxDependencies entries.
func (f *Feature) Validate() error {
	if f.ID <= 0 {
		return fmt.Errorf("feature: id must be positive, got %d", f.ID)
	}
	if err := validateFields(f.Name, f.Category, f.Description, f.Steps); err != nil {
		return fmt.Errorf("feature %d: %w", f.ID, err)
	}
	if len(f.Dependencies) > depgraph.MaxDependencies {
		return fmt.Errorf("feature %d: maximum %d dependencies allowed, got %d",
			f.ID, depgraph.MaxDependencies, len(f.Dependencies))
	}
	seen := make(map[int64]struct{}, len(f.Dependencies))
	for _, dependencyID := range f.Dependencies {
		if dependencyID == f.ID {
			return fmt.Errorf("feature %d: cannot depend on itself", f.ID)
		}
		if _, duplicate := seen[dependencyID]; duplicate {
			return fmt.Errorf("feature %d: duplicate dependency on %d", f.ID, dependencyID)
		}
		seen[dependencyID] = struct{}{}
	}
	return nil
}

// Node projects the feature onto the fields the dependency engine
// reads.
func (f *Feature) Node() depgraph.Node {
	return depgraph.Node{
		ID:           f.ID,
		Priority:     f.Priority,
		Dependencies: f.Dependencies,
		Passes:       f.Passes,
		InProgress:   f.InProgress,
	}
}

// NewFeature is the creation payload for one feature.
type NewFeature struct {
	Category    string   `json:"category"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`

	// DependsOn lists IDs of features already in the backlog.
	DependsOn []int64 `json:"depends_on,omitempty"`

	// DependsOnIndices lists zero-based positions of earlier entries
	// in the same creation batch. The store resolves them to the IDs
	// it assigns.
	DependsOnIndices []int `json:"depends_on_indices,omitempty"`
}

// Validate checks required fields. position is the entry's index in
// its batch; DependsOnIndices must point strictly before it.
func (n *NewFeature) Validate(position int) error {
	if err := validateFields(n.Name, n.Category, n.Description, n.Steps); err != nil {
		return fmt.Errorf("new feature [%d]: %w", position, err)
	}
	for _, index := range n.DependsOnIndices {
		if index < 0 || index >= position {
			return fmt.Errorf("new feature [%d]: depends_on_indices entry %d must reference an earlier entry", position, index)
		}
	}
	if count := len(n.DependsOn) + len(n.DependsOnIndices); count > depgraph.MaxDependencies {
		return fmt.Errorf("new feature [%d]: maximum %d dependencies allowed, got %d",
			position, depgraph.MaxDependencies, count)
	}
	return nil
}

func validateFields(name, category, description string, steps []string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(category) == "" {
		return errors.New("category is required")
	}
	if strings.TrimSpace(description) == "" {
		return errors.New("description is required")
	}
	for i, step := range steps {
		if strings.TrimSpace(step) == "" {
			return fmt.Errorf("steps[%d] is empty", i)
		}
	}
	return nil
}
