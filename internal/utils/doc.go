// Package utils holds the configuration loader and logger factory shared by
// the treediff commands.
//
// ConfigurationLoader layers embedded defaults, an optional configuration file,
// and TREEDIFF_* environment variables through Viper. LoggerFactory builds the
// zap logger used across the audit packages.
package utils
