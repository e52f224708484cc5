// Package config loads tutor configuration from flags, environment, .env files and an
// optional config.yaml in the user config directory.
//
// Precedence, highest first: bound flags, TUTOR_* environment variables, config.yaml,
// .env files (working directory over config directory), built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Setting keys understood by Load. Each maps to a TUTOR_<KEY> environment variable.
const (
	KeyProvider       = "provider"
	KeyModel          = "model"
	KeyBaseURL        = "base_url"
	KeyAPIKey         = "api_key"
	KeyRelayURL       = "relay_url"
	KeyStorageBackend = "storage.backend"
	KeyStoragePath    = "storage.path"
	KeyServerAddr     = "server.addr"
	KeyAuditFailOpen  = "audit.fail_open"
	KeyRequestTimeout = "request_timeout"
)

// Storage backends.
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

var defaults = map[string]interface{}{
	KeyProvider:       "groq",
	KeyModel:          "",
	KeyBaseURL:        "",
	KeyAPIKey:         "",
	KeyRelayURL:       "http://localhost:8080",
	KeyStorageBackend: StorageFile,
	KeyStoragePath:    "",
	KeyServerAddr:     ":8080",
	KeyAuditFailOpen:  false,
	KeyRequestTimeout: 60 * time.Second,
}

// Config holds all tutor configuration.
type Config struct {
	Provider       string
	Model          string
	BaseURL        string
	APIKey         string
	RelayURL       string
	RequestTimeout time.Duration
	Storage        StorageConfig
	Server         ServerConfig
	// AuditFailOpen accepts unaudited output when the auditor's reply cannot be parsed.
	AuditFailOpen bool
	ConfigDir     string
}

// StorageConfig selects where the conversation is persisted.
type StorageConfig struct {
	Backend string
	Path    string
}

// ServerConfig configures `tutor serve`.
type ServerConfig struct {
	Addr string
}

// Options controls where Load looks for files. Empty fields use the real user directories.
type Options struct {
	ConfigDir string
	WorkDir   string
}

// Load builds a Config from v, which may already have flags bound to the setting keys.
func Load(v *viper.Viper, opts Options) (*Config, error) {
	configDir := opts.ConfigDir
	if configDir == "" {
		dir, err := UserConfigDir()
		if err != nil {
			return nil, err
		}
		configDir = dir
	}

	workDir := opts.WorkDir
	if workDir == "" {
		dir, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		workDir = dir
	}

	dotenv, err := loadDotEnvFiles(
		filepath.Join(configDir, ".env"),
		filepath.Join(workDir, ".env"),
	)
	if err != nil {
		return nil, err
	}

	for key, value := range defaults {
		v.SetDefault(key, value)
		envName := envNameFor(key)
		if err := v.BindEnv(key, envName); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", envName, err)
		}
		if dv, ok := dotenv[envName]; ok {
			v.SetDefault(key, dv)
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Provider:       strings.ToLower(strings.TrimSpace(v.GetString(KeyProvider))),
		Model:          v.GetString(KeyModel),
		BaseURL:        v.GetString(KeyBaseURL),
		APIKey:         v.GetString(KeyAPIKey),
		RelayURL:       v.GetString(KeyRelayURL),
		RequestTimeout: v.GetDuration(KeyRequestTimeout),
		Storage: StorageConfig{
			Backend: strings.ToLower(v.GetString(KeyStorageBackend)),
			Path:    v.GetString(KeyStoragePath),
		},
		Server:        ServerConfig{Addr: v.GetString(KeyServerAddr)},
		AuditFailOpen: v.GetBool(KeyAuditFailOpen),
		ConfigDir:     configDir,
	}

	if cfg.APIKey == "" {
		if p, ok := LookupProvider(cfg.Provider); ok && p.APIKeyEnv != "" {
			cfg.APIKey = os.Getenv(p.APIKeyEnv)
			if cfg.APIKey == "" {
				cfg.APIKey = dotenv[p.APIKeyEnv]
			}
		}
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = defaultStoragePath(configDir, cfg.Storage.Backend)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	p, ok := LookupProvider(c.Provider)
	if !ok {
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if p.Client == ClientRelay && c.RelayURL == "" {
		return fmt.Errorf("relay provider requires %s", envNameFor(KeyRelayURL))
	}

	switch c.Storage.Backend {
	case StorageFile, StorageSQLite, StorageMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s must be > 0", envNameFor(KeyRequestTimeout))
	}
	return nil
}

// RequireAPIKey reports a descriptive error when the selected provider needs a key and none is set.
func (c *Config) RequireAPIKey() error {
	p, ok := LookupProvider(c.Provider)
	if !ok {
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if p.APIKeyEnv == "" || c.APIKey != "" {
		return nil
	}
	return fmt.Errorf("no API key for provider %s: set %s or %s", c.Provider, p.APIKeyEnv, envNameFor(KeyAPIKey))
}

// UserConfigDir returns $XDG_CONFIG_HOME/mathtutor or ~/.config/mathtutor.
func UserConfigDir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, "mathtutor"), nil
}

func envNameFor(key string) string {
	return "TUTOR_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func defaultStoragePath(configDir, backend string) string {
	switch backend {
	case StorageSQLite:
		return filepath.Join(configDir, "conversation.db")
	case StorageFile:
		return filepath.Join(configDir, "conversation.json")
	default:
		return ""
	}
}

// loadDotEnvFiles parses each existing file in order; later files override earlier ones.
// Missing files are not an error.
func loadDotEnvFiles(paths ...string) (map[string]string, error) {
	merged := make(map[string]string)
	for _, envPath := range paths {
		data, err := os.ReadFile(envPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read .env file %s: %w", envPath, err)
		}

		envMap, err := godotenv.Unmarshal(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse .env file %s: %w", envPath, err)
		}
		for key, value := range envMap {
			merged[key] = value
		}
	}
	return merged, nil
}
