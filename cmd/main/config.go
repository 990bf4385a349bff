package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/CTAG07/folio/pkg/render"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds the configuration for the HTTP server and the
// cache backend behind it.
type ServerConfig struct {
	ServerAddr   string `json:"server_addr" yaml:"server_addr"`
	LogLevel     string `json:"log_level" yaml:"log_level"`
	DataDir      string `json:"data_dir" yaml:"data_dir"`
	IndexView    string `json:"index_view" yaml:"index_view"`
	AdminToken   string `json:"admin_token" yaml:"admin_token"`
	Watch        bool   `json:"watch" yaml:"watch"`
	CacheBackend string `json:"cache_backend" yaml:"cache_backend"`
	CacheDir     string `json:"cache_dir" yaml:"cache_dir"`
	CacheDSN     string `json:"cache_dsn" yaml:"cache_dsn"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server *ServerConfig  `json:"server_config" yaml:"server_config"`
	Render *render.Config `json:"render_config" yaml:"render_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ServerAddr:   ":8080",
		LogLevel:     "info",
		DataDir:      "./data",
		IndexView:    "index",
		Watch:        false,
		CacheBackend: backendFile,
		CacheDir:     "./data/cache",
		CacheDSN:     "./data/folio_cache.db?_journal_mode=WAL&_busy_timeout=5000",
	}
}

func defaultRenderConfig() *render.Config {
	rc := render.DefaultConfig()
	return &rc
}

// LoadConfig reads the configuration from the file at path, JSON by
// default or YAML when the extension says so.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	// Initialize with default configurations
	config := &Config{
		Server: DefaultServerConfig(),
		Render: defaultRenderConfig(),
	}

	file, err := os.ReadFile(path)
	if err != nil {
		// If the file doesn't exist, create it with the default config.
		if os.IsNotExist(err) {
			var data []byte
			data, err = marshalConfig(path, config)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Log a warning instead of failing, as the server can still run with defaults.
				fmt.Printf("warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		// For other errors (e.g., permission denied), return the error.
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = unmarshalConfig(path, file, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

func yamlConfig(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func marshalConfig(path string, config *Config) ([]byte, error) {
	if yamlConfig(path) {
		return yaml.Marshal(config)
	}
	return json.MarshalIndent(config, "", "  ")
}

func unmarshalConfig(path string, data []byte, config *Config) error {
	if yamlConfig(path) {
		return yaml.Unmarshal(data, config)
	}
	return json.Unmarshal(data, config)
}

// ConfigManager handles thread-safe access to the configuration and
// persists updates back to the file they came from.
type ConfigManager struct {
	config     *Config
	configPath string
	logger     *slog.Logger
	native     *render.NativeEngine
	mu         sync.RWMutex
}

// NewConfigManager loads the config and initializes the manager.
func NewConfigManager(path string) (*ConfigManager, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	return &ConfigManager{
		config:     cfg,
		configPath: path,
		// Log to stdout before the application-specific logger is set.
		logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})),
	}, nil
}

// SetLogger sets the logger. That's about it.
func (cm *ConfigManager) SetLogger(logger *slog.Logger) {
	cm.logger = logger
}

// SetNativeEngine registers the engine that should pick up views-root
// changes applied through Update.
func (cm *ConfigManager) SetNativeEngine(e *render.NativeEngine) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.native = e
}

// Get returns a thread-safe copy of the current configuration.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	// Return a dereferenced copy to prevent external modification of the internal state
	return *cm.config
}

// Update replaces the configuration, pushes the views root to the
// running engine and saves the result to disk. Most render settings
// apply on the next restart; the views root is applied live, so a bad
// path is rejected here instead of surfacing after a restart.
func (cm *ConfigManager) Update(newConfig Config) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if newConfig.Server == nil || newConfig.Render == nil {
		return errors.New("incomplete configuration")
	}

	if cm.native != nil && newConfig.Render.ViewsDir != cm.config.Render.ViewsDir {
		oldRoot := cm.config.Render.ViewsDir
		if err := cm.native.SetRoot(newConfig.Render.ViewsDir); err != nil {
			// Rollback to the old root
			_ = cm.native.SetRoot(oldRoot)
			return fmt.Errorf("views directory rejected: %w", err)
		}
	}

	*cm.config = newConfig

	data, err := marshalConfig(cm.configPath, cm.config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err = atomic.WriteFile(cm.configPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	cm.logger.Info("Configuration saved", "path", cm.configPath)
	return nil
}
