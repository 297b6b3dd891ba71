// Package config loads the lending service configuration from a TOML file and builds the
// database and redis connections it names.
package config
