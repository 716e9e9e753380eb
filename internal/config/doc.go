// Package config loads duety's configuration.
//
// Values are resolved in three layers: built-in defaults, an optional TOML
// file, then environment variables. Command-line flags are applied by the
// caller on top of the result.
package config
