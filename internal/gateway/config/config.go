package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Mode string

const (
	// ModeDesktop serves a single local viewer.
	ModeDesktop Mode = "desktop"
	// ModeServer serves remote browsers; every response may be cached by the client.
	ModeServer Mode = "server"
)

type Config struct {
	Port      string        `yaml:"port"`
	Root      string        `yaml:"root"`
	ContextID string        `yaml:"context_id"`
	Mode      Mode          `yaml:"mode"`
	Docs      DocsConfig    `yaml:"docs"`
	Archive   ArchiveConfig `yaml:"archive"`
}

type DocsConfig struct {
	File      string `yaml:"file"`
	DSN       string `yaml:"dsn"`
	CacheSize int    `yaml:"cache_size"`
}

type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

func defaults() Config {
	return Config{
		Port: ":8081",
		Root: "tmp/nbcache",
		Mode: ModeDesktop,
		Docs: DocsConfig{CacheSize: 1024},
		Archive: ArchiveConfig{
			Region: "us-east-1",
			Bucket: "nbcache-outputs",
			UseSSL: true,
		},
	}
}

// Load reads .env, then the YAML file at path (or $NBCACHE_CONFIG), then environment
// overrides. A missing context ID is generated.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	path = firstNonEmpty(strings.TrimSpace(path), strings.TrimSpace(os.Getenv("NBCACHE_CONFIG")))
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if envPort := strings.TrimSpace(os.Getenv("PORT")); envPort != "" {
		cfg.Port = envPort
	}
	cfg.Root = firstNonEmpty(strings.TrimSpace(os.Getenv("NBCACHE_ROOT")), cfg.Root)
	cfg.ContextID = firstNonEmpty(strings.TrimSpace(os.Getenv("NBCACHE_CONTEXT_ID")), cfg.ContextID)
	if mode := strings.TrimSpace(os.Getenv("NBCACHE_MODE")); mode != "" {
		cfg.Mode = Mode(mode)
	}
	cfg.Docs.File = firstNonEmpty(strings.TrimSpace(os.Getenv("NBCACHE_DOCS_FILE")), cfg.Docs.File)
	cfg.Docs.DSN = firstNonEmpty(strings.TrimSpace(os.Getenv("NBCACHE_DOCS_PG_DSN")), cfg.Docs.DSN)

	cfg.Archive.Endpoint = firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_ENDPOINT")), cfg.Archive.Endpoint)
	cfg.Archive.Region = firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_REGION")), cfg.Archive.Region)
	cfg.Archive.AccessKey = firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_ACCESS_KEY")), cfg.Archive.AccessKey)
	cfg.Archive.SecretKey = firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_SECRET_KEY")), cfg.Archive.SecretKey)
	cfg.Archive.Bucket = firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_BUCKET")), cfg.Archive.Bucket)
	if raw := strings.TrimSpace(os.Getenv("ARCHIVE_S3_USE_SSL")); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.Archive.UseSSL = v
		}
	}
}

func (c *Config) normalize() error {
	if c.Port != "" && !strings.HasPrefix(c.Port, ":") && !strings.Contains(c.Port, ":") {
		c.Port = ":" + c.Port
	}
	m, err := ParseMode(string(c.Mode))
	if err != nil {
		return err
	}
	c.Mode = m
	if strings.TrimSpace(c.Root) == "" {
		return fmt.Errorf("cache root is required")
	}
	if strings.TrimSpace(c.ContextID) == "" {
		c.ContextID = NewContextID()
	}
	return nil
}

// ParseMode accepts a mode name in any case; empty means desktop.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "":
		return ModeDesktop, nil
	case ModeDesktop, ModeServer:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// NewContextID returns a short random identifier for a live execution context.
func NewContextID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
