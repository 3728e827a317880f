package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
var ConfigPath = "config.yaml"

// Backend kinds.
const (
	BackendLocal    = "local"
	BackendRemote   = "remote"
	BackendPostgres = "postgres"
)

// Storage kinds.
const (
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port            string   `yaml:"port"`
	LogLevel        string   `yaml:"logLevel"`
	Backend         string   `yaml:"backend"`
	Storage         string   `yaml:"storage"`
	StoragePath     string   `yaml:"storagePath"`
	RedisAddr       string   `yaml:"redisAddr"`
	RedisPassword   string   `yaml:"redisPassword"`
	RedisPrefix     string   `yaml:"redisPrefix"`
	GraphQLURL      string   `yaml:"graphqlURL"`
	RemoteTimeout   string   `yaml:"remoteTimeout"`
	DatabaseURL     string   `yaml:"databaseURL"`
	TokenSecret     string   `yaml:"tokenSecret"`
	TokenTTL        string   `yaml:"tokenTTL"`
	VerifyOnRestore bool     `yaml:"verifyOnRestore"`
	SeedDatabase    bool     `yaml:"seedDatabase"`
	CORSOrigins     []string `yaml:"corsOrigins"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() FileConfig {
	return FileConfig{
		Port:          "8080",
		LogLevel:      "info",
		Backend:       BackendLocal,
		Storage:       StorageFile,
		StoragePath:   "data/bookhub.json",
		RedisPrefix:   "bookhub",
		RemoteTimeout: "10s",
		SeedDatabase:  true,
	}
}

// Load reads config from path (defaults to config.yaml), then applies
// environment overrides. A missing file at the default path is not an error.
func Load(path string) (FileConfig, error) {
	cfg := Defaults()
	explicit := path != "" && path != ConfigPath
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}
	applyEnv(&cfg)
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("BOOKHUB_PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("BOOKHUB_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BOOKHUB_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("BOOKHUB_STORAGE"); v != "" {
		cfg.Storage = v
	}
	if v := os.Getenv("BOOKHUB_STORAGE_PATH"); v != "" {
		cfg.StoragePath = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("BOOKHUB_REDIS_PREFIX"); v != "" {
		cfg.RedisPrefix = strings.TrimSpace(v)
	}
	if v := os.Getenv("BOOKHUB_GRAPHQL_URL"); v != "" {
		cfg.GraphQLURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("BOOKHUB_REMOTE_TIMEOUT"); v != "" {
		cfg.RemoteTimeout = strings.TrimSpace(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("BOOKHUB_TOKEN_SECRET"); v != "" {
		cfg.TokenSecret = v
	}
	if v := os.Getenv("BOOKHUB_TOKEN_TTL"); v != "" {
		cfg.TokenTTL = strings.TrimSpace(v)
	}
	if v := os.Getenv("BOOKHUB_VERIFY_ON_RESTORE"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.VerifyOnRestore = b
		}
	}
	if v := os.Getenv("BOOKHUB_SEED_DATABASE"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.SeedDatabase = b
		}
	}
	if v := os.Getenv("BOOKHUB_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or BOOKHUB_PORT)")
	}
	switch cfg.Backend {
	case BackendLocal:
	case BackendRemote:
		if cfg.GraphQLURL == "" {
			return errors.New("config: graphqlURL is required for the remote backend (set in config.yaml or BOOKHUB_GRAPHQL_URL)")
		}
	case BackendPostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return errors.New("config: databaseURL is required for the postgres backend (set in config.yaml or DATABASE_URL)")
		}
	default:
		return fmt.Errorf("config: unknown backend %q (want local, remote or postgres)", cfg.Backend)
	}
	switch cfg.Storage {
	case StorageFile:
		if strings.TrimSpace(cfg.StoragePath) == "" {
			return errors.New("config: storagePath is required for file storage")
		}
	case StorageRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for redis storage (set in config.yaml or REDIS_ADDR)")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("config: unknown storage %q (want file, redis or memory)", cfg.Storage)
	}
	if _, err := ParseDuration("remoteTimeout", cfg.RemoteTimeout); err != nil {
		return err
	}
	if _, err := ParseDuration("tokenTTL", cfg.TokenTTL); err != nil {
		return err
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ParseDuration parses an optional duration setting; "" yields 0.
func ParseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", name, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("invalid %s duration: must not be negative", name)
	}
	return dur, nil
}
