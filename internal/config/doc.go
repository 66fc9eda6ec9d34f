// Package config loads, normalizes, and validates linkrelay configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TELEGRAM_BOT_TOKEN and NTFY_TOPIC. The Config type centralizes every knob the
// daemon and CLI need, from the upload ceiling to the checkpoint cadence.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
