// Package diffs provides a generic keyed-collection differ.
//
// Given a before and an after snapshot keyed by a stable identifier, Diff
// classifies every key in the union of both maps as added, removed, updated
// or unchanged. Entities present on both sides are compared field by field;
// numeric fields whose values differ by less than a small tolerance
// (Epsilon) are treated as equal, so repeated floating-point arithmetic does
// not surface spurious updates.
//
// The four buckets partition the key union: every key appears exactly once
// in the result.
//
// # Usage
//
//	results := diffs.Diff(previous, fresh, diffs.Options{})
//	for id, r := range results {
//	    if r.State == diffs.StateUpdated {
//	        // r.Deltas lists the differing fields
//	    }
//	}
package diffs
