// Package config defines the data layer configuration.
//
//   - spec.go: Config struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation, creating data directories as needed
//   - sanitize.go: Masking of secrets for logging
//   - load.go: Loading through internal/infra/confloader
package config
