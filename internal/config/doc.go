// Package config loads, normalizes, and validates vqgate configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// VQGATE_GOLDEN_DIR. The Config type centralizes every knob the evaluation
// components and CLI need: golden set location, decoder tooling, default
// metric thresholds, regression tolerances, benchmark sampling, and CI gate
// policy.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
