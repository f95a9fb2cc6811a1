// Package config loads and validates the twpulse application configuration.
//
// Configuration is resolved in three layers, later layers winning:
//
//  1. Compiled-in defaults (Default)
//  2. An optional YAML file (config.yaml, or TWP_CONFIG_FILE)
//  3. Environment variables with the TWP_ prefix (envconfig)
//
// The resolved configuration is validated with go-playground/validator
// struct tags before it is handed to the application container.
package config
