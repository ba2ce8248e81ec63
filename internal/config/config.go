// Package config provides configuration management for hakai using Viper
// for loading from hakai.yml, HAKAI_ prefixed environment variables and
// command-line flags.
//
// The configuration names the default root route, the project layout the
// compiler reads from, the development server address and the live reload
// settings. Load applies defaults for anything left unset and validates the
// result before returning it.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	hakaierrors "github.com/KevTale/hakai/internal/errors"
)

type Config struct {
	Root    RootConfig    `mapstructure:"root" yaml:"root"`
	Project ProjectConfig `mapstructure:"project" yaml:"project"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	HMR     HMRConfig     `mapstructure:"hmr" yaml:"hmr"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// RootConfig names the page served for "/".
type RootConfig struct {
	Scope string `mapstructure:"scope" yaml:"scope"`
	Page  string `mapstructure:"page" yaml:"page"`
}

type ProjectConfig struct {
	Root            string `mapstructure:"root" yaml:"root"`
	ScopesDir       string `mapstructure:"scopes_dir" yaml:"scopes_dir"`
	DesignSystemDir string `mapstructure:"design_system_dir" yaml:"design_system_dir"`
	Extension       string `mapstructure:"extension" yaml:"extension"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type HMRConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Path     string        `mapstructure:"path" yaml:"path"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// Address returns host:port for the HTTP listener.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Root: RootConfig{Scope: "home", Page: "home"},
		Project: ProjectConfig{
			Root:            ".",
			ScopesDir:       "scopes",
			DesignSystemDir: "design-system/components",
			Extension:       ".kai",
		},
		Server: ServerConfig{Host: "localhost", Port: 8000},
		HMR:    HMRConfig{Debounce: 100 * time.Millisecond, Path: "/hmr"},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// SetDefaults registers every default on v so that env overrides of unset
// keys are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("root.scope", d.Root.Scope)
	v.SetDefault("root.page", d.Root.Page)
	v.SetDefault("project.root", d.Project.Root)
	v.SetDefault("project.scopes_dir", d.Project.ScopesDir)
	v.SetDefault("project.design_system_dir", d.Project.DesignSystemDir)
	v.SetDefault("project.extension", d.Project.Extension)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("hmr.debounce", d.HMR.Debounce)
	v.SetDefault("hmr.path", d.HMR.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)
}

// Load reads the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	config := Default()
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}

	// Handle allowed origins set via env as a comma separated list (workaround for viper slice handling)
	if v.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 1 &&
		strings.Contains(config.Server.AllowedOrigins[0], ",") {
		config.Server.AllowedOrigins = splitList(config.Server.AllowedOrigins[0])
	}

	if !strings.HasPrefix(config.HMR.Path, "/") {
		config.HMR.Path = "/" + config.HMR.Path
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validateRootConfig(&config.Root); err != nil {
		return hakaierrors.NewInvalidConfig("root config").WithCause(err)
	}

	if err := validateProjectConfig(&config.Project); err != nil {
		return hakaierrors.NewInvalidConfig("project config").WithCause(err)
	}

	// Validate port range (allow 0 for system-assigned ports in testing)
	if config.Server.Port < 0 || config.Server.Port > 65535 {
		return hakaierrors.NewInvalidConfig(
			fmt.Sprintf("server config: port %d is not in valid range 0-65535", config.Server.Port))
	}

	if config.HMR.Debounce <= 0 {
		return hakaierrors.NewInvalidConfig(
			fmt.Sprintf("hmr config: debounce must be positive, got %s", config.HMR.Debounce))
	}

	switch config.Log.Format {
	case "text", "json":
	default:
		return hakaierrors.NewInvalidConfig(
			fmt.Sprintf("log config: format must be text or json, got %q", config.Log.Format))
	}

	return nil
}

func validateRootConfig(config *RootConfig) error {
	for key, value := range map[string]string{"scope": config.Scope, "page": config.Page} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must not be empty", key)
		}
		if strings.ContainsAny(value, `/\`) {
			return fmt.Errorf("%s %q must not contain path separators", key, value)
		}
	}
	return nil
}

func validateProjectConfig(config *ProjectConfig) error {
	if !strings.HasPrefix(config.Extension, ".") || len(config.Extension) < 2 {
		return fmt.Errorf("extension %q must start with a dot", config.Extension)
	}
	if strings.TrimSpace(config.ScopesDir) == "" {
		return fmt.Errorf("scopes_dir must not be empty")
	}
	if strings.TrimSpace(config.DesignSystemDir) == "" {
		return fmt.Errorf("design_system_dir must not be empty")
	}
	return nil
}
