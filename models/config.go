// Package models defines configuration and the result shapes returned to callers.
package models

import (
	"fmt"
	"os"
	"strings"

	"github.com/dtnitsch/llm-archive-reader/pkg/faults"
	"github.com/dtnitsch/llm-archive-reader/pkg/logger"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration for lar.
type Config struct {
	Archives ArchivesConfig `yaml:"archives"`
	Content  ContentConfig  `yaml:"content"`
	Search   SearchConfig   `yaml:"search"`
	Random   RandomConfig   `yaml:"random"`
	Server   ServerConfig   `yaml:"server"`
	Logging  logger.Config  `yaml:"logging"`
}

// ArchivesConfig controls discovery and the handle cache.
type ArchivesConfig struct {
	Directory       string `yaml:"directory" env:"LAR_ARCHIVE_DIR"`
	Extension       string `yaml:"extension" env:"LAR_ARCHIVE_EXTENSION"`
	CacheSize       int    `yaml:"cache_size" env:"LAR_ARCHIVE_CACHE_SIZE"`
	MaxFileSizeMB   int64  `yaml:"max_file_size_mb" env:"LAR_MAX_ARCHIVE_SIZE_MB"`
	VerifyChecksums *bool  `yaml:"verify_checksums" env:"LAR_VERIFY_CHECKSUMS"`
}

// MaxFileSizeBytes is the eager metadata ceiling in bytes.
func (c ArchivesConfig) MaxFileSizeBytes() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

// ShouldVerifyChecksums reports whether embedded checksums are checked on first load.
func (c ArchivesConfig) ShouldVerifyChecksums() bool {
	return c.VerifyChecksums == nil || *c.VerifyChecksums
}

// ContentConfig controls extraction output.
type ContentConfig struct {
	MaxContentLength int  `yaml:"max_content_length" env:"LAR_MAX_CONTENT_LENGTH"`
	UseReadability   bool `yaml:"use_readability" env:"LAR_USE_READABILITY"`
}

type SearchConfig struct {
	MaxResults int `yaml:"max_results" env:"LAR_MAX_SEARCH_RESULTS"`
}

type RandomConfig struct {
	MaxCount int `yaml:"max_count" env:"LAR_MAX_RANDOM_COUNT"`
}

// ServerConfig selects the MCP transport.
type ServerConfig struct {
	Transport string `yaml:"transport" env:"LAR_TRANSPORT"`
	Host      string `yaml:"host" env:"LAR_HOST"`
	Port      int    `yaml:"port" env:"LAR_PORT"`
}

// Address is host:port for the HTTP transport.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

const (
	DefaultArchiveDir       = "./archives"
	DefaultArchiveExtension = ".zip"
	DefaultCacheSize        = 10
	DefaultMaxFileSizeMB    = 1024
	DefaultMaxContentLength = 100000
	DefaultMaxSearchResults = 100
	DefaultMaxRandomCount   = 50
	DefaultTransport        = "stdio"
	DefaultHost             = "0.0.0.0"
	DefaultPort             = 8000
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	if c.Archives.Directory == "" {
		c.Archives.Directory = DefaultArchiveDir
	}
	if c.Archives.Extension == "" {
		c.Archives.Extension = DefaultArchiveExtension
	}
	if !strings.HasPrefix(c.Archives.Extension, ".") {
		c.Archives.Extension = "." + c.Archives.Extension
	}
	if c.Archives.CacheSize == 0 {
		c.Archives.CacheSize = DefaultCacheSize
	}
	if c.Archives.MaxFileSizeMB == 0 {
		c.Archives.MaxFileSizeMB = DefaultMaxFileSizeMB
	}
	if c.Content.MaxContentLength == 0 {
		c.Content.MaxContentLength = DefaultMaxContentLength
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = DefaultMaxSearchResults
	}
	if c.Random.MaxCount == 0 {
		c.Random.MaxCount = DefaultMaxRandomCount
	}
	if c.Server.Transport == "" {
		c.Server.Transport = DefaultTransport
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	c.Logging.SetDefaults()
}

// Validate rejects values the components cannot run with.
func (c *Config) Validate() error {
	if c.Archives.CacheSize <= 0 {
		return faults.Config("archives.cache_size must be positive, got %d", c.Archives.CacheSize)
	}
	if c.Archives.MaxFileSizeMB <= 0 {
		return faults.Config("archives.max_file_size_mb must be positive, got %d", c.Archives.MaxFileSizeMB)
	}
	if c.Content.MaxContentLength <= 0 {
		return faults.Config("content.max_content_length must be positive, got %d", c.Content.MaxContentLength)
	}
	if c.Search.MaxResults <= 0 {
		return faults.Config("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	if c.Random.MaxCount <= 0 {
		return faults.Config("random.max_count must be positive, got %d", c.Random.MaxCount)
	}
	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return faults.Config("server.transport must be %q or %q, got %q", TransportStdio, TransportHTTP, c.Server.Transport)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return faults.Config("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// LoadConfig reads the YAML file at path (a missing file means defaults),
// applies .env files and LAR_* environment overrides, then validates.
func LoadConfig(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, faults.WrapConfig(err, "failed to load environment files")
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, faults.WrapConfig(err, fmt.Sprintf("failed to parse config %s", path))
			}
		case os.IsNotExist(err):
		default:
			return nil, faults.WrapConfig(err, fmt.Sprintf("failed to read config %s", path))
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFiles honours ENV_FILE, then .env.local, then .env.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
	}
	return nil
}
