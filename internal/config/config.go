package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Backend   BackendConfig   `json:"backend"`
	Gateway   GatewayConfig   `json:"gateway"`
	Storage   StorageConfig   `json:"storage"`
	Audio     AudioConfig     `json:"audio"`
	Professor ProfessorConfig `json:"professor"`
	Defaults  DefaultsConfig  `json:"defaults"`
}

// BackendConfig locates the tutoring backend REST service.
type BackendConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GatewayConfig configures the local HTTP surface the browser UI talks to.
type GatewayConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	CORSOrigins string `json:"cors_origins"`
}

type StorageConfig struct {
	Path string `json:"path"`
}

// AudioConfig describes the system recorder used for microphone capture.
type AudioConfig struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	MIMEType string   `json:"mime_type"`
}

// ProfessorConfig gates the instructor views. PasswordHash is a bcrypt hash;
// JWTSecret signs the session tokens minted after a successful login.
type ProfessorConfig struct {
	PasswordHash string `json:"password_hash"`
	JWTSecret    string `json:"jwt_secret"`
}

type DefaultsConfig struct {
	Language string `json:"language"`
	Voice    string `json:"voice"`
	Theme    string `json:"theme"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	// Add config paths
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Check for user config directory
	homeDir, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(homeDir, ".lingopal"))
	}

	// Set defaults
	viper.SetDefault("backend.base_url", "https://localhost:5000")
	viper.SetDefault("backend.timeout_seconds", 120)
	viper.SetDefault("gateway.host", "localhost")
	viper.SetDefault("gateway.port", 8080)
	viper.SetDefault("storage.path", defaultStoragePath(homeDir))
	viper.SetDefault("audio.command", "ffmpeg")
	viper.SetDefault("audio.args", []string{"-f", "alsa", "-i", "default", "-f", "mp3", "-"})
	viper.SetDefault("audio.mime_type", "audio/mpeg")
	viper.SetDefault("defaults.language", "English")
	viper.SetDefault("defaults.voice", "alloy")
	viper.SetDefault("defaults.theme", "light")

	// Read config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			cfg := createDefaultConfig(homeDir)
			loadEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Load environment variables
	loadEnvOverrides(&cfg)

	return &cfg, nil
}

func createDefaultConfig(homeDir string) *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:        "https://localhost:5000",
			TimeoutSeconds: 120,
		},
		Gateway: GatewayConfig{
			Host: "localhost",
			Port: 8080,
		},
		Storage: StorageConfig{
			Path: defaultStoragePath(homeDir),
		},
		Audio: AudioConfig{
			Command:  "ffmpeg",
			Args:     []string{"-f", "alsa", "-i", "default", "-f", "mp3", "-"},
			MIMEType: "audio/mpeg",
		},
		Defaults: DefaultsConfig{
			Language: "English",
			Voice:    "alloy",
			Theme:    "light",
		},
	}
}

func defaultStoragePath(homeDir string) string {
	if homeDir == "" {
		return "lingopal.db"
	}
	return filepath.Join(homeDir, ".lingopal", "lingopal.db")
}

func loadEnvOverrides(cfg *Config) {
	if baseURL := os.Getenv("LINGOPAL_BACKEND_URL"); baseURL != "" {
		cfg.Backend.BaseURL = baseURL
	}
	if host := os.Getenv("LINGOPAL_HOST"); host != "" {
		cfg.Gateway.Host = host
	}
	if port := os.Getenv("LINGOPAL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Gateway.Port = p
		}
	}
	if path := os.Getenv("LINGOPAL_DB_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if hash := os.Getenv("LINGOPAL_PROFESSOR_PASSWORD_HASH"); hash != "" {
		cfg.Professor.PasswordHash = hash
	}
	if secret := os.Getenv("LINGOPAL_JWT_SECRET"); secret != "" {
		cfg.Professor.JWTSecret = secret
	}
}
