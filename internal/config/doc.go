// Package config defines the onionwatch configuration and loads it from
// defaults, a YAML file, environment variables and CLI flags, in that order
// of precedence.
package config
