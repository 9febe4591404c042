// internal/utils/logger/config.go
package logger

import "io"

// Rotation задаёт политику lumberjack для JSON-файла
type Rotation struct {
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

var DefaultRotation = Rotation{MaxSizeMB: 100, MaxAgeDays: 7, MaxBackups: 3, Compress: true}

type Config struct {
	File        string
	Rotation    Rotation
	Development bool
	Console     io.Writer // nil: os.Stdout
}

// ForFile returns a config writing JSON lines to path with the default rotation.
func ForFile(path string, development bool) *Config {
	return &Config{File: path, Rotation: DefaultRotation, Development: development}
}

func DefaultConfig() *Config {
	return ForFile("logs/pumpcurve.log", false)
}
