// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package feature defines the backlog's feature record and the
// payload used to create new features.
//
// [Feature] is what the store persists and returns. [NewFeature] is
// what callers submit: it has no ID or priority (the store assigns
// both under the priority lock) and may reference earlier entries of
// the same batch through DependsOnIndices.
//
// Validate methods check business fields (name, category,
// description, steps) and the structural invariants that hold on any
// stored record. Whether a dependency exists or would close a cycle
// depends on the rest of the backlog and is checked by the store
// through the depgraph engine.
package feature
