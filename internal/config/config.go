package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	DataDir     string `mapstructure:"data_dir" yaml:"data_dir"`
	Store       string `mapstructure:"store" yaml:"store"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
	ListenAddr  string `mapstructure:"listen_addr" yaml:"listen_addr"`

	// Processing limits
	MaxUploadMB  int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	PreviewLimit int    `mapstructure:"preview_limit" yaml:"preview_limit"`
	HistoryLimit int    `mapstructure:"history_limit" yaml:"history_limit"`
	HeaderPolicy string `mapstructure:"header_policy" yaml:"header_policy"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// Chart export size in pixels
	ChartWidth  int `mapstructure:"chart_width" yaml:"chart_width"`
	ChartHeight int `mapstructure:"chart_height" yaml:"chart_height"`
}

// Keys lists every settable key in display order.
var Keys = []string{
	"data_dir", "store", "database_url", "listen_addr",
	"max_upload_mb", "preview_limit", "history_limit", "header_policy",
	"log_level", "log_format", "chart_width", "chart_height",
}

// Dir returns ~/.sheetlens.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".sheetlens"), nil
}

// Path returns the config file in use: cfgFile when set, else ~/.sheetlens/config.yaml.
func Path(cfgFile string) (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.sheetlens/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path, err := Path(cfgFile)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "")
	v.SetDefault("store", "file")
	v.SetDefault("database_url", "")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("max_upload_mb", 10)
	v.SetDefault("preview_limit", 100)
	v.SetDefault("history_limit", 20)
	v.SetDefault("header_policy", "drop")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("chart_width", 1024)
	v.SetDefault("chart_height", 512)
}

// Load loads configuration from file, env, and defaults.
// Precedence: env (including a local .env file) > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	// .env never overrides variables already exported
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SHEETLENS")
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Resolve data_dir default: ~/.sheetlens/data
	if c.DataDir == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		c.DataDir = filepath.Join(dir, "data")
	}
	return &c, nil
}

// Set assigns one key from its string form, validating enumerated values.
func (c *Global) Set(key, value string) error {
	switch key {
	case "data_dir":
		c.DataDir = value
	case "store":
		switch value {
		case "memory", "file", "postgres":
		default:
			return fmt.Errorf("invalid store %q (use memory|file|postgres)", value)
		}
		c.Store = value
	case "database_url":
		c.DatabaseURL = value
	case "listen_addr":
		c.ListenAddr = value
	case "header_policy":
		if value != "drop" && value != "placeholder" {
			return fmt.Errorf("invalid header_policy %q (use drop|placeholder)", value)
		}
		c.HeaderPolicy = value
	case "log_level":
		c.LogLevel = value
	case "log_format":
		if value != "json" && value != "text" {
			return fmt.Errorf("invalid log_format %q (use json|text)", value)
		}
		c.LogFormat = value
	case "max_upload_mb", "preview_limit", "history_limit", "chart_width", "chart_height":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %q", key, value)
		}
		switch key {
		case "max_upload_mb":
			c.MaxUploadMB = n
		case "preview_limit":
			c.PreviewLimit = n
		case "history_limit":
			c.HistoryLimit = n
		case "chart_width":
			c.ChartWidth = n
		case "chart_height":
			c.ChartHeight = n
		}
	default:
		return fmt.Errorf("unknown key %q (valid: %s)", key, strings.Join(Keys, ", "))
	}
	return nil
}
