package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// Config holds storage engine configuration
type Config struct {
	// Buffer pool
	PoolSize  int `json:"pool_size" ini:"pool_size"`   // Number of frames
	ReplacerK int `json:"replacer_k" ini:"replacer_k"` // LRU-K history window

	// Disk
	DataDirectory string `json:"data_directory" ini:"data_directory"`
	PageSize      int    `json:"page_size" ini:"page_size"`

	// Write-ahead log
	WALEnabled     bool   `json:"wal_enabled" ini:"wal_enabled"`
	WALDirectory   string `json:"wal_directory" ini:"wal_directory"`
	WALCompression string `json:"wal_compression" ini:"wal_compression"` // none, snappy, lz4

	// Observability
	EnableMetrics bool   `json:"enable_metrics" ini:"enable_metrics"`
	LogLevel      string `json:"log_level" ini:"log_level"` // debug, info, warn, error
	StatsAddr     string `json:"stats_addr" ini:"stats_addr"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		PoolSize:       100,
		ReplacerK:      DefaultReplacerK,
		DataDirectory:  "./data",
		PageSize:       PageSize,
		WALEnabled:     true,
		WALDirectory:   "./wal",
		WALCompression: "snappy",
		EnableMetrics:  true,
		LogLevel:       "info",
		StatsAddr:      ":8642",
	}
}

// LoadConfigFromFile loads configuration from a JSON or INI file, picked
// by extension.
func LoadConfigFromFile(path string) (*Config, error) {
	if strings.HasSuffix(path, ".ini") {
		return LoadConfigFromINI(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// LoadConfigFromINI loads configuration from an INI file. Keys live in the
// [storage] section; missing keys keep their defaults.
func LoadConfigFromINI(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	section := file.Section("storage")
	if err := section.MapTo(config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// LoadConfigFromEnv loads configuration from BASALT_* environment
// variables, falling back to defaults.
func LoadConfigFromEnv() *Config {
	config := DefaultConfig()

	if val := os.Getenv("BASALT_POOL_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			config.PoolSize = size
		}
	}
	if val := os.Getenv("BASALT_REPLACER_K"); val != "" {
		if k, err := strconv.Atoi(val); err == nil {
			config.ReplacerK = k
		}
	}
	if val := os.Getenv("BASALT_DATA_DIRECTORY"); val != "" {
		config.DataDirectory = val
	}
	if val := os.Getenv("BASALT_WAL_ENABLED"); val != "" {
		config.WALEnabled = val == "true" || val == "1"
	}
	if val := os.Getenv("BASALT_WAL_DIRECTORY"); val != "" {
		config.WALDirectory = val
	}
	if val := os.Getenv("BASALT_WAL_COMPRESSION"); val != "" {
		config.WALCompression = val
	}
	if val := os.Getenv("BASALT_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}
	if val := os.Getenv("BASALT_STATS_ADDR"); val != "" {
		config.StatsAddr = val
	}

	return config
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.PoolSize <= 0 {
		return fmt.Errorf("pool size must be greater than 0")
	}
	if c.ReplacerK <= 0 {
		return fmt.Errorf("replacer k must be greater than 0")
	}
	if c.PageSize != PageSize {
		return fmt.Errorf("page size must be %d", PageSize)
	}
	if c.DataDirectory == "" {
		return fmt.Errorf("data directory cannot be empty")
	}
	if c.WALEnabled && c.WALDirectory == "" {
		return fmt.Errorf("WAL directory cannot be empty when WAL is enabled")
	}
	if _, err := ParseCompressionType(c.WALCompression); err != nil {
		return err
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
