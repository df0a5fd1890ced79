package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/codefionn/threadchat/internal/consts"
)

// Environment variables that override values read from the config file.
const (
	EnvLogLevel = "THREADCHAT_LOG_LEVEL"
	EnvLogPath  = "THREADCHAT_LOG_PATH"
	EnvPort     = "THREADCHAT_PORT"
	EnvWSAddr   = "THREADCHAT_WS_ADDR"
)

// ServerConfig holds settings for the broadcast server
type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	MaxConnections int    `json:"max_connections"`
	SendQueueSize  int    `json:"send_queue_size"`
	WebSocketAddr  string `json:"websocket_addr,omitempty"` // e.g. "127.0.0.1:9003", empty disables
}

// ClientConfig holds settings for the terminal client
type ClientConfig struct {
	Port               int `json:"port"` // used when the host argument carries no port
	ConnectAttempts    int `json:"connect_attempts"`
	DialTimeoutSeconds int `json:"dial_timeout_seconds"`
	InputCapacity      int `json:"input_capacity"`
}

// Config represents application configuration
type Config struct {
	LogLevel string       `json:"log_level"` // debug, info, warn, error, none
	LogPath  string       `json:"log_path"`
	Server   ServerConfig `json:"server"`
	Client   ClientConfig `json:"client"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, "threadchat")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", "threadchat")
	default:
		if configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); configHome != "" {
			return filepath.Join(configHome, "threadchat")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "threadchat")
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, "threadchat")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", "threadchat")
	default:
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, "threadchat")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", "threadchat")
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		LogPath:  filepath.Join(defaultStateDir(), "threadchat.log"),
		Server: ServerConfig{
			Host:           consts.DefaultListenHost,
			Port:           consts.DefaultPort,
			MaxConnections: consts.DefaultMaxConnections,
			SendQueueSize:  consts.DefaultSendQueueSize,
		},
		Client: ClientConfig{
			Port:               consts.DefaultPort,
			ConnectAttempts:    consts.DefaultConnectAttempts,
			DialTimeoutSeconds: int(consts.Timeout5Seconds.Seconds()),
			InputCapacity:      consts.DefaultInputCapacity,
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// Start with default config
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return default config if file doesn't exist
			return config, nil
		}
		return nil, err
	}

	// Unmarshal into default config (overrides only provided fields)
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	config.fillDefaults()
	return config, nil
}

// fillDefaults restores defaults for fields explicitly zeroed in the file.
func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogPath == "" {
		c.LogPath = def.LogPath
	}
	if c.Server.Host == "" {
		c.Server.Host = def.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.MaxConnections == 0 {
		c.Server.MaxConnections = def.Server.MaxConnections
	}
	if c.Server.SendQueueSize == 0 {
		c.Server.SendQueueSize = def.Server.SendQueueSize
	}
	if c.Client.Port == 0 {
		c.Client.Port = def.Client.Port
	}
	if c.Client.ConnectAttempts == 0 {
		c.Client.ConnectAttempts = def.Client.ConnectAttempts
	}
	if c.Client.DialTimeoutSeconds == 0 {
		c.Client.DialTimeoutSeconds = def.Client.DialTimeoutSeconds
	}
	if c.Client.InputCapacity == 0 {
		c.Client.InputCapacity = def.Client.InputCapacity
	}
}

// ApplyEnv overrides fields from THREADCHAT_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogPath)); v != "" {
		c.LogPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.Server.Port = port
		c.Client.Port = port
	}
	if v, ok := os.LookupEnv(EnvWSAddr); ok {
		c.Server.WebSocketAddr = strings.TrimSpace(v)
	}
	return nil
}

// Validate checks that numeric settings are usable.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Client.Port <= 0 || c.Client.Port > 65535 {
		return fmt.Errorf("client.port %d out of range", c.Client.Port)
	}
	if c.Server.MaxConnections < 1 {
		return fmt.Errorf("server.max_connections must be positive, got %d", c.Server.MaxConnections)
	}
	if c.Server.SendQueueSize < 1 {
		return fmt.Errorf("server.send_queue_size must be positive, got %d", c.Server.SendQueueSize)
	}
	if c.Client.ConnectAttempts < 1 {
		return fmt.Errorf("client.connect_attempts must be positive, got %d", c.Client.ConnectAttempts)
	}
	if c.Client.DialTimeoutSeconds < 1 {
		return fmt.Errorf("client.dial_timeout_seconds must be positive, got %d", c.Client.DialTimeoutSeconds)
	}
	if c.Client.InputCapacity < 1 {
		return fmt.Errorf("client.input_capacity must be positive, got %d", c.Client.InputCapacity)
	}
	return nil
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}
