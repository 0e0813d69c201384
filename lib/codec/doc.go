// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the backlog's CBOR encoding configuration.
//
// JSON is used for external interfaces (CLI --json output, import
// files). CBOR is used for internal on-disk state, currently the
// priority-counter lock marker. This package holds the one shared
// encoding mode so every writer produces identical bytes: Core
// Deterministic Encoding (RFC 8949 §4.2), sorted map keys, smallest
// integer encoding, no indefinite-length items.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types that are only ever stored as CBOR carry `cbor` struct tags.
package codec
