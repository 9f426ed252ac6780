// Package namemap maintains the persisted, bidirectional mapping from
// arbitrary identifiers to unique, ASCII-only, filesystem-safe names used for
// DVD-compatible output.
//
// The mapping is injective: no two identifiers ever share a normalized name;
// collisions are resolved with numeric suffixes and over-long names are
// truncated with a content-derived hash fragment. The whole map lives in a
// single JSON document written atomically on every mutation, so repeated
// Normalize calls for the same identifier return the same name across process
// restarts.
package namemap
