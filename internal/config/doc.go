// Package config loads, normalizes, and validates asvprep configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// pipeline needs: corpus and augmentation URLs, the data prefix and target
// directories, external tool names, and logging output.
//
// Always obtain settings through this package so downstream code receives
// sanitized absolute paths and clear validation errors.
package config
