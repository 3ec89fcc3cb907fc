// Package config loads, normalizes, and validates ampliflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads either TOML or YAML documents. Both decoders run in
// strict mode so a misspelled key is reported instead of silently ignored.
// The Config type holds the named actions a run can perform, the reference
// data each action needs, and the QIIME 2 parameters for every pipeline
// stage.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and validation errors that wrap ErrInvalid.
package config
