// Package config loads, normalizes, and validates transmute configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours TRANSMUTE_* environment overrides.
// The Config type centralizes every knob the engine, scheduler, shipped codecs,
// and CLI need so they can be resolved in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
