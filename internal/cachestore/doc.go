// Package cachestore implements the namespaced artifact cache backing the
// download and conversion pipeline.
//
// Entries live at <root>/<namespace>/<name> next to a <name>.meta.json sidecar
// recording key, checksum, and size. Writers reserve a key, stream into a
// staging file under the namespace's .in-progress directory, and commit with a
// single rename, so readers only ever observe absent or complete entries.
// Cross-process exclusion comes from per-key lock files under .locks.
package cachestore
