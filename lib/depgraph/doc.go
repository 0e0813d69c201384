// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package depgraph is the dependency graph engine for the feature
// backlog. It turns a snapshot of feature records into a scheduling
// order, a cycle report, a ready/blocked classification, and a
// per-feature scheduling score, and it answers whether a proposed
// dependency edge may be added.
//
// The engine holds no state between calls. Every operation builds a
// fresh [Graph] from the snapshot it is handed, computes its answer,
// and discards the graph. The graph is arena-style: feature IDs are
// mapped to dense indices and edges are index slices, so nothing
// retains pointers into a previous snapshot. Callers that read the
// snapshot without holding a lock may see a stale view; the engine
// guarantees only that its answer is correct for the input it was
// given.
//
// # Direction
//
// A [Node] lists the IDs it depends on. An edge "A depends on B" is
// stored twice: B appears in A's dependency list and A appears in B's
// dependents list. In-degree counts the present dependencies of a
// node, so Kahn's algorithm emits a feature only after everything it
// depends on.
//
// # Degraded input
//
// Dependency IDs absent from the snapshot are reported as missing and
// otherwise ignored. Cycles already present in the snapshot are
// reported, never fatal: [Engine.Sort] still returns every ID exactly
// once. Traversals are bounded by [Limits.MaxDependencyDepth]; running
// past the bound is treated as "assume a cycle", which is the safe
// answer for both reporting and edge validation.
//
// # Concurrency
//
// An [Engine] only carries immutable limits and is safe for concurrent
// use. The shared mutable state of the backlog (the priority counter)
// is guarded separately by package prioritylock.
package depgraph
