// Package config loads and validates the application configuration.
//
// Configuration is a single YAML document covering storage, logging,
// solver defaults, and pipeline behavior. Missing fields fall back to
// defaults; structural problems are reported through validator tags.
package config
