package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Nano112/db-clone-tool/internal/postgres"
	"github.com/Nano112/db-clone-tool/internal/sshtunnel"
)

// EnvFiles are probed in order; the first one that exists is loaded.
// Values already present in the real environment always win.
var EnvFiles = []string{".env", ".env.local", ".env.production", ".env.development"}

// SSHSettings describe the optional SSH hop in front of the source database.
type SSHSettings struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	User     string `yaml:"user,omitempty"`
	KeyPath  string `yaml:"key,omitempty"`
	Insecure bool   `yaml:"insecure,omitempty"`
}

// Enabled reports whether a hop is configured at all.
func (s SSHSettings) Enabled() bool { return s.Host != "" }

// Addr returns host:port of the SSH daemon.
func (s SSHSettings) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// TunnelConfig converts the settings into a dialable sshtunnel.Config.
func (s SSHSettings) TunnelConfig() sshtunnel.Config {
	return sshtunnel.Config{
		User:     s.User,
		Host:     s.Addr(),
		KeyPath:  s.KeyPath,
		Insecure: s.Insecure,
	}
}

// Settings is everything a clone run needs, before CLI flag overrides.
type Settings struct {
	Source postgres.Profile
	Target postgres.Profile
	SSH    SSHSettings
}

// LoadEnvFile probes EnvFiles in the current directory and loads the first
// hit. Returns the loaded path, or empty when none exist.
func LoadEnvFile() (string, error) {
	for _, f := range EnvFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return "", fmt.Errorf("load %s: %w", f, err)
		}
		return f, nil
	}
	return "", nil
}

// FromEnv reads the documented variables. Missing numeric values stay zero so
// later layers can tell "unset" from an explicit value; Normalize applies the
// final defaults.
func FromEnv() Settings {
	return Settings{
		Source: postgres.Profile{
			Host:     os.Getenv("PROD_DB_HOST"),
			Port:     envInt("PROD_DB_PORT"),
			Database: os.Getenv("PROD_DB_DATABASE"),
			Username: os.Getenv("PROD_DB_USERNAME"),
			Password: os.Getenv("PROD_DB_PASSWORD"),
			SSL:      envBool("PROD_DB_SSL"),
		},
		Target: postgres.Profile{
			Host:     os.Getenv("DB_HOST"),
			Port:     envInt("DB_PORT"),
			Database: os.Getenv("DB_DATABASE"),
			Username: os.Getenv("DB_USERNAME"),
			Password: os.Getenv("DB_PASSWORD"),
		},
		SSH: SSHSettings{
			Host:     os.Getenv("PROD_DB_SSH_HOST"),
			Port:     envInt("PROD_DB_SSH_PORT"),
			User:     os.Getenv("PROD_DB_SSH_USER"),
			KeyPath:  os.Getenv("PROD_DB_SSH_KEY"),
			Insecure: envBool("PROD_DB_SSH_INSECURE"),
		},
	}
}

// Normalize fills defaults once all layers are merged: ports 5432, target
// host localhost, ssh port 22.
func (s *Settings) Normalize() {
	if s.Source.Port == 0 {
		s.Source.Port = 5432
	}
	if s.Target.Host == "" {
		s.Target.Host = "localhost"
	}
	if s.Target.Port == 0 {
		s.Target.Port = 5432
	}
	if s.SSH.Enabled() && s.SSH.Port == 0 {
		s.SSH.Port = 22
	}
}

// Validate checks both endpoints.
func (s *Settings) Validate() error {
	if err := s.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := s.Target.Validate(); err != nil {
		return fmt.Errorf("target: %w", err)
	}
	return nil
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	return strings.EqualFold(os.Getenv(key), "true")
}
