// Package utils exposes reusable helpers consumed by the catalogue commands.
//
// ConfigurationLoader layers the embedded defaults, configuration files, and
// environment variables through Viper. LoggerFactory builds zap loggers that
// can also append to a rotating log file.
package utils
