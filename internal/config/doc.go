// Package config loads the profiled daemon configuration from a YAML file,
// a .env file and PROFILED_* environment variables.
package config
