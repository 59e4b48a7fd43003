// Package config provides configuration loading and validation for the audio board service.
// It reads a YAML file over built-in defaults and validates every section before the
// server is wired together.
package config
