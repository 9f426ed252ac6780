// Package config loads, normalizes, and validates dvdmaker configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// cache engine and CLI need: the shared cache root, lock timing policy,
// staging retention, and the optional event ledger.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
