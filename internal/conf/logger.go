// Package conf provides configuration management for wildlife-go.
package conf

import "github.com/tphakala/wildlife-go/internal/logger"

// GetLogger returns the config module logger. It is fetched on every call so
// it follows the central logger once cmd installs it.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
