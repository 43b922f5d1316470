// Package settings loads the tool's own configuration: defaults, then
// .glowsetup.yaml, then .env, then GLOWSETUP_* environment variables.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// FileName is the optional settings file in the project root.
	FileName = ".glowsetup.yaml"
	// EnvFileName is the optional dotenv file in the project root.
	EnvFileName = ".env"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "GLOWSETUP_"
)

// PlatformIO configures the toolchain driver.
type PlatformIO struct {
	Executable     string `yaml:"executable"`
	InstallerURL   string `yaml:"installer_url"`
	InstallTimeout string `yaml:"install_timeout"`
}

// Mesh holds defaults for the mesh prompts.
type Mesh struct {
	DefaultName    string `yaml:"default_name"`
	PasswordSecret string `yaml:"password_secret"` // Secret Manager resource name
}

// Log configures diagnostics.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Monitor configures the native serial monitor.
type Monitor struct {
	LogDir string `yaml:"log_dir"`
}

// Settings is the merged configuration. Paths are relative to the project root.
type Settings struct {
	Environment     string     `yaml:"environment"`
	MonitorBaud     int        `yaml:"monitor_baud"`
	ConfigFile      string     `yaml:"config_file"`
	TemplateFile    string     `yaml:"template_file"`
	BackupDir       string     `yaml:"backup_dir"`
	BackupPrefix    string     `yaml:"backup_prefix"`
	BackupListLimit int        `yaml:"backup_list_limit"`
	PlatformIO      PlatformIO `yaml:"platformio"`
	Mesh            Mesh       `yaml:"mesh"`
	Log             Log        `yaml:"log"`
	Monitor         Monitor    `yaml:"monitor"`

	installTimeout time.Duration
}

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// Default returns the built-in settings.
func Default() *Settings {
	s := &Settings{}
	s.setDefaults()
	_ = s.validate()
	return s
}

// Load reads the settings for the project at root from the process environment.
func Load(root string) (*Settings, error) {
	return LoadWithEnv(root, os.LookupEnv)
}

// LoadWithEnv is Load with a custom environment (for testing). Variables in .env
// only apply when lookup does not already know them.
func LoadWithEnv(root string, lookup LookupFunc) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(filepath.Join(root, FileName))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	default:
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", FileName, err)
		}
	}

	dotenv, err := godotenv.Read(filepath.Join(root, EnvFileName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", EnvFileName, err)
	}
	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := s.applyEnv(env); err != nil {
		return nil, err
	}

	s.sanitize()
	s.setDefaults()

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// InstallTimeout returns the parsed PlatformIO install timeout.
func (s *Settings) InstallTimeout() time.Duration {
	return s.installTimeout
}

func (s *Settings) applyEnv(env LookupFunc) error {
	strs := map[string]*string{
		"ENVIRONMENT":          &s.Environment,
		"CONFIG_FILE":          &s.ConfigFile,
		"TEMPLATE_FILE":        &s.TemplateFile,
		"BACKUP_DIR":           &s.BackupDir,
		"BACKUP_PREFIX":        &s.BackupPrefix,
		"PIO_EXECUTABLE":       &s.PlatformIO.Executable,
		"PIO_INSTALLER_URL":    &s.PlatformIO.InstallerURL,
		"PIO_INSTALL_TIMEOUT":  &s.PlatformIO.InstallTimeout,
		"MESH_NAME":            &s.Mesh.DefaultName,
		"MESH_PASSWORD_SECRET": &s.Mesh.PasswordSecret,
		"LOG_LEVEL":            &s.Log.Level,
		"LOG_FORMAT":           &s.Log.Format,
		"MONITOR_LOG_DIR":      &s.Monitor.LogDir,
	}
	for name, dst := range strs {
		if v, ok := env(EnvPrefix + name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MONITOR_BAUD":      &s.MonitorBaud,
		"BACKUP_LIST_LIMIT": &s.BackupListLimit,
	}
	for name, dst := range ints {
		v, ok := env(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config error: %s%s must be an integer: %w", EnvPrefix, name, err)
		}
		*dst = n
	}
	return nil
}

func (s *Settings) sanitize() {
	s.Environment = strings.TrimSpace(s.Environment)
	s.ConfigFile = strings.TrimSpace(s.ConfigFile)
	s.TemplateFile = strings.TrimSpace(s.TemplateFile)
	s.BackupDir = strings.TrimSpace(s.BackupDir)
	s.BackupPrefix = strings.TrimSpace(s.BackupPrefix)
	s.PlatformIO.Executable = strings.TrimSpace(s.PlatformIO.Executable)
	s.PlatformIO.InstallerURL = strings.TrimSpace(s.PlatformIO.InstallerURL)
	s.PlatformIO.InstallTimeout = strings.TrimSpace(s.PlatformIO.InstallTimeout)
	s.Mesh.PasswordSecret = strings.TrimSpace(s.Mesh.PasswordSecret)
	s.Log.Level = strings.ToLower(strings.TrimSpace(s.Log.Level))
	s.Log.Format = strings.ToLower(strings.TrimSpace(s.Log.Format))
	s.Monitor.LogDir = strings.TrimSpace(s.Monitor.LogDir)
}

func (s *Settings) setDefaults() {
	if s.Environment == "" {
		s.Environment = "esp32c3"
	}
	if s.MonitorBaud == 0 {
		s.MonitorBaud = 115200
	}
	if s.ConfigFile == "" {
		s.ConfigFile = "include/GlowConfig.h"
	}
	if s.TemplateFile == "" {
		s.TemplateFile = "include/GlowConfig.h-template"
	}
	if s.BackupDir == "" {
		s.BackupDir = "include/backups"
	}
	if s.BackupPrefix == "" {
		s.BackupPrefix = "GlowConfig_backup"
	}
	if s.BackupListLimit == 0 {
		s.BackupListLimit = 10
	}
	if s.PlatformIO.InstallerURL == "" {
		s.PlatformIO.InstallerURL = "https://raw.githubusercontent.com/platformio/platformio-core-installer/master/get-platformio.py"
	}
	if s.PlatformIO.InstallTimeout == "" {
		s.PlatformIO.InstallTimeout = "10m"
	}
	if s.Mesh.DefaultName == "" {
		s.Mesh.DefaultName = "GlowMesh"
	}
	if s.Log.Level == "" {
		s.Log.Level = "warn"
	}
	if s.Log.Format == "" {
		s.Log.Format = "console"
	}
	if s.Monitor.LogDir == "" {
		s.Monitor.LogDir = "logs"
	}
}

func (s *Settings) validate() error {
	if s.MonitorBaud <= 0 {
		return fmt.Errorf("config error: 'monitor_baud' must be positive")
	}
	if s.BackupListLimit < 0 {
		return fmt.Errorf("config error: 'backup_list_limit' must not be negative")
	}
	d, err := time.ParseDuration(s.PlatformIO.InstallTimeout)
	if err != nil || d <= 0 {
		return fmt.Errorf("config error: 'platformio.install_timeout' must be a positive duration, got %q", s.PlatformIO.InstallTimeout)
	}
	s.installTimeout = d
	switch s.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("config error: 'log.format' must be console or json, got %q", s.Log.Format)
	}
	return nil
}
