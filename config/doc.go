// Package config loads the freeseek client configuration.
//
// Values come from built-in defaults, an optional YAML file
// ($HOME/.freeseek.yaml, ./.freeseek.yaml or an explicit path), an
// optional .env file, and FREESEEK_* environment variables. Nested keys use
// underscores in the environment (FREESEEK_CIRCUIT_RECOVERY_TIMEOUT).
// Durations accept Go syntax ("45s") or bare seconds ("45").
//
// # Usage
//
//	cfg, err := config.Load(config.WithConfigFile(path))
package config
