package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is the prefix for all environment variables
	EnvPrefix = "FILESTORE_"
	// EnvStoragePrefix is the prefix for storage pool environment variables
	EnvStoragePrefix = EnvPrefix + "STORAGE_"
)

// Config holds the global application configuration
type Config struct {
	// Optional YAML file applied before environment and CLI arguments
	ConfigFile string

	// Storage settings
	DefaultStorage string
	StorageArgs    []string
	StoragePools   map[string]*StoragePool

	// Staging area for archive downloads
	TempDir string

	// Logging
	LogLevel  string
	LogFormat string
}

// StoragePool represents a named storage pool configuration
type StoragePool struct {
	Name    string
	Type    string
	Options map[string]string
}

// fileConfig is the YAML layout:
//
//	default_storage: local
//	temp_dir: /var/tmp
//	log_level: debug
//	storage:
//	  local:
//	    type: local
//	    options:
//	      path: /srv/files
type fileConfig struct {
	DefaultStorage string                 `yaml:"default_storage"`
	TempDir        string                 `yaml:"temp_dir"`
	LogLevel       string                 `yaml:"log_level"`
	LogFormat      string                 `yaml:"log_format"`
	Storage        map[string]filePoolDef `yaml:"storage"`
}

type filePoolDef struct {
	Type    string            `yaml:"type"`
	Options map[string]string `yaml:"options"`
}

// New creates a new Config with default values
func New() *Config {
	return &Config{
		LogLevel:     "info",
		LogFormat:    "text",
		TempDir:      os.TempDir(),
		StoragePools: make(map[string]*StoragePool),
	}
}

// LoadFile applies the YAML configuration at path. Values already set by the
// file are overridden later by environment variables and CLI arguments. A
// default pool chosen before loading is kept.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.DefaultStorage != "" && c.DefaultStorage == "" {
		c.DefaultStorage = fc.DefaultStorage
	}
	if fc.TempDir != "" {
		c.TempDir = fc.TempDir
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.LogFormat != "" {
		c.LogFormat = fc.LogFormat
	}

	for name, def := range fc.Storage {
		name = strings.ToLower(name)
		if def.Type != "" {
			c.setStoragePoolOption(name, "type", def.Type)
		}
		for option, value := range def.Options {
			c.setStoragePoolOption(name, option, value)
		}
	}

	return nil
}

func (c *Config) ParseStoragePools() error {
	if c.ConfigFile != "" {
		if err := c.LoadFile(c.ConfigFile); err != nil {
			return err
		}
	}

	// Environment variables override the file
	c.parseStorageEnvVars()

	// CLI arguments override env vars
	for _, arg := range c.StorageArgs {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid storage argument format: %s (expected pool.option=value)", arg)
		}

		key := parts[0]
		value := parts[1]

		keyParts := strings.SplitN(key, ".", 2)
		if len(keyParts) != 2 || keyParts[0] == "" || keyParts[1] == "" {
			return fmt.Errorf("invalid storage key format: %s (expected pool.option)", key)
		}

		c.setStoragePoolOption(keyParts[0], keyParts[1], value)
	}

	for name, pool := range c.StoragePools {
		if pool.Type == "" {
			return fmt.Errorf("storage pool %q is missing required 'type' option", name)
		}
	}

	if c.DefaultStorage == "" {
		if envDefault := os.Getenv(EnvPrefix + "DEFAULT_STORAGE"); envDefault != "" {
			c.DefaultStorage = envDefault
		}
	}

	// A single pool is the default unless something else was named
	if c.DefaultStorage == "" && len(c.StoragePools) == 1 {
		for name := range c.StoragePools {
			c.DefaultStorage = name
		}
	}

	if c.DefaultStorage != "" {
		if _, exists := c.StoragePools[c.DefaultStorage]; !exists {
			return fmt.Errorf("default storage pool %q does not exist", c.DefaultStorage)
		}
	}

	return nil
}

func (c *Config) parseStorageEnvVars() {
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, EnvStoragePrefix) {
			continue
		}

		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := parts[0]
		value := parts[1]

		// FILESTORE_STORAGE_ARCHIVE_ACCESS_KEY -> ARCHIVE_ACCESS_KEY
		remainder := strings.TrimPrefix(key, EnvStoragePrefix)

		// ARCHIVE_ACCESS_KEY -> ARCHIVE, ACCESS_KEY
		underscoreIdx := strings.Index(remainder, "_")
		if underscoreIdx <= 0 {
			continue
		}

		poolName := strings.ToLower(remainder[:underscoreIdx])
		option := strings.ToLower(remainder[underscoreIdx+1:])

		// ACCESS_KEY -> access-key
		option = strings.ReplaceAll(option, "_", "-")
		if option == "" {
			continue
		}

		c.setStoragePoolOption(poolName, option, value)
	}
}

func (c *Config) setStoragePoolOption(poolName, option, value string) {
	pool, exists := c.StoragePools[poolName]
	if !exists {
		pool = &StoragePool{
			Name:    poolName,
			Options: make(map[string]string),
		}
		c.StoragePools[poolName] = pool
	}

	if option == "type" {
		pool.Type = value
	} else {
		pool.Options[option] = value
	}
}
