// Package config provides configuration structures and defaults for drgex
package config

import (
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Serial      SerialConfig      `mapstructure:"serial" yaml:"serial"`           // Serial port settings
	Acquisition AcquisitionConfig `mapstructure:"acquisition" yaml:"acquisition"` // Capture session settings
	Filter      FilterConfig      `mapstructure:"filter" yaml:"filter"`           // Notch filter settings
	Analysis    AnalysisConfig    `mapstructure:"analysis" yaml:"analysis"`       // Spectral analysis settings
	Output      OutputConfig      `mapstructure:"output" yaml:"output"`           // Sample file output
	Journal     JournalConfig     `mapstructure:"journal" yaml:"journal"`         // Capture history database
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`         // Logging configuration
}

// SerialConfig contains the sensor connection parameters
type SerialConfig struct {
	Port        string        `mapstructure:"port" yaml:"port"`                 // Serial device path or COM name
	BaudRate    int           `mapstructure:"baud_rate" yaml:"baud_rate"`       // Line speed
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"` // Per-read timeout
}

// AcquisitionConfig contains capture session parameters
type AcquisitionConfig struct {
	Duration         time.Duration `mapstructure:"duration" yaml:"duration"`                     // Error-free window to capture
	ReopenDelay      time.Duration `mapstructure:"reopen_delay" yaml:"reopen_delay"`             // Pause between close and reopen after a bad frame
	MaxSessionFactor float64       `mapstructure:"max_session_factor" yaml:"max_session_factor"` // Hard session limit as a multiple of Duration
}

// FilterConfig contains notch filter parameters
type FilterConfig struct {
	Enabled  bool    `mapstructure:"enabled" yaml:"enabled"`     // Apply the notch before analysis
	CenterHz float64 `mapstructure:"center_hz" yaml:"center_hz"` // Rejected frequency
	Quality  float64 `mapstructure:"quality" yaml:"quality"`     // Notch quality factor
}

// AnalysisConfig contains spectral analysis parameters
type AnalysisConfig struct {
	FFTBackend string `mapstructure:"fft_backend" yaml:"fft_backend"` // "gonum" or "godsp"
	Peaks      int    `mapstructure:"peaks" yaml:"peaks"`             // Number of peaks to report
}

// OutputConfig contains sample file output parameters
type OutputConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`               // File, or directory for numbered files; empty disables export
	FilePrefix string `mapstructure:"file_prefix" yaml:"file_prefix"` // Prefix for numbered files
}

// JournalConfig contains capture history parameters
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"` // Record every finished capture
	Path    string `mapstructure:"path" yaml:"path"`       // SQLite database file
}

// LoggingConfig contains logging configuration parameters
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"` // Log level (debug, info, warn, error)
	File  string `mapstructure:"file" yaml:"file"`   // Optional log file path, stderr is always used
}

// DefaultConfig returns a configuration with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:        "/dev/ttyUSB0", // Common USB serial adapter path
			BaudRate:    1500000,        // Sensor firmware line speed
			ReadTimeout: time.Second,
		},
		Acquisition: AcquisitionConfig{
			Duration:         10 * time.Second,
			ReopenDelay:      100 * time.Millisecond,
			MaxSessionFactor: 3.2,
		},
		Filter: FilterConfig{
			Enabled:  false,
			CenterHz: 50, // Mains hum
			Quality:  30,
		},
		Analysis: AnalysisConfig{
			FFTBackend: "gonum",
			Peaks:      5,
		},
		Output: OutputConfig{
			Path:       "",
			FilePrefix: "sample",
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    "drgex.db",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// Validate rejects configurations that cannot start a session
func (c *Config) Validate() error {
	if c.Serial.Port == "" {
		return fmt.Errorf("serial port not specified")
	}
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate: %d", c.Serial.BaudRate)
	}
	if c.Serial.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v", c.Serial.ReadTimeout)
	}
	if c.Acquisition.Duration <= 0 {
		return fmt.Errorf("invalid duration: %v (must be positive)", c.Acquisition.Duration)
	}
	if c.Acquisition.ReopenDelay < 0 {
		return fmt.Errorf("invalid reopen delay: %v", c.Acquisition.ReopenDelay)
	}
	if c.Acquisition.MaxSessionFactor < 1 {
		return fmt.Errorf("invalid max session factor: %.2f (must be at least 1)", c.Acquisition.MaxSessionFactor)
	}
	if c.Filter.Enabled {
		if c.Filter.CenterHz <= 0 {
			return fmt.Errorf("invalid notch frequency: %.2f Hz (must be positive)", c.Filter.CenterHz)
		}
		if c.Filter.Quality <= 0 {
			return fmt.Errorf("invalid notch quality: %.2f (must be positive)", c.Filter.Quality)
		}
	}
	switch c.Analysis.FFTBackend {
	case "gonum", "godsp":
	default:
		return fmt.Errorf("invalid FFT backend: %s (must be 'gonum' or 'godsp')", c.Analysis.FFTBackend)
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal enabled but no database path set")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}

// YAML renders the configuration in the same layout the config file uses
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// MarshalYAML writes durations in time.ParseDuration form
func (s SerialConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Port        string `yaml:"port"`
		BaudRate    int    `yaml:"baud_rate"`
		ReadTimeout string `yaml:"read_timeout"`
	}{s.Port, s.BaudRate, s.ReadTimeout.String()}, nil
}

// MarshalYAML writes durations in time.ParseDuration form
func (a AcquisitionConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Duration         string  `yaml:"duration"`
		ReopenDelay      string  `yaml:"reopen_delay"`
		MaxSessionFactor float64 `yaml:"max_session_factor"`
	}{a.Duration.String(), a.ReopenDelay.String(), a.MaxSessionFactor}, nil
}
