// Package config loads and saves the controller's global configuration
// file, touched by `init` and `config {show,edit,set}`. The atomic-rewrite
// pattern mirrors internal/store's single-file JSON document, generalized
// to YAML since a human is expected to read and hand-edit this file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/spuff-dev/spuff/internal/schema"
)

// Config is the on-disk global configuration, weaker than project-file
// `resources` and CLI flags in the precedence chain, read by every command
// that needs a default provider/size/region/admin identity.
type Config struct {
	Provider        string            `yaml:"provider"`
	Region          string            `yaml:"region"`
	Size            string            `yaml:"size"`
	AdminUser       string            `yaml:"admin_user"`
	SSHPublicKey    string            `yaml:"ssh_public_key"`
	SSHPrivateKey   string            `yaml:"ssh_private_key"`
	IdleTimeoutSecs int               `yaml:"idle_timeout_secs"`
	DataDir         string            `yaml:"data_dir"`
	AgentPort       int               `yaml:"agent_port"`
	AITools         []string          `yaml:"ai_tools,omitempty"`
	Env             map[string]string `yaml:"env,omitempty"`
}

// Default returns the values `init` writes out when no flags override
// them: a DigitalOcean-sized dev box, the conventional ~/.ssh key pair,
// and a two-hour idle window.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Provider:        "digitalocean",
		Region:          "nyc3",
		Size:            "s-2vcpu-4gb",
		AdminUser:       "dev",
		SSHPublicKey:    filepath.Join(home, ".ssh", "id_ed25519.pub"),
		SSHPrivateKey:   filepath.Join(home, ".ssh", "id_ed25519"),
		IdleTimeoutSecs: int((2 * 60 * 60)),
		DataDir:         filepath.Join(home, ".spuff"),
		AgentPort:       7575,
	}
}

// Timeouts returns the provider/orchestrator timeout bundle. The global
// config does not expose per-field overrides for these, so this is always
// schema.DefaultTimeouts.
func (c Config) Timeouts() schema.Timeouts {
	return schema.DefaultTimeouts()
}

// DefaultPath returns ~/.spuff/config.yaml, the conventional location
// `init` writes to and every other command reads from absent a --config
// override.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine home directory: %w", err)
	}
	return filepath.Join(home, ".spuff", "config.yaml"), nil
}

// Exists reports whether a config file is already present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Load reads and parses the config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories as needed and
// rewriting atomically (write-to-temp + rename) so a crash mid-write never
// corrupts a config a human may be hand-editing concurrently.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Set assigns value to the field named by key (the YAML tag name, e.g.
// "region", "size"), used by `config set KEY VALUE`. Unknown keys are
// rejected rather than silently ignored, since a typo'd key here would
// otherwise silently fail to take effect.
func Set(cfg *Config, key, value string) error {
	switch key {
	case "provider":
		cfg.Provider = value
	case "region":
		cfg.Region = value
	case "size":
		cfg.Size = value
	case "admin_user":
		cfg.AdminUser = value
	case "ssh_public_key":
		cfg.SSHPublicKey = value
	case "ssh_private_key":
		cfg.SSHPrivateKey = value
	case "data_dir":
		cfg.DataDir = value
	case "idle_timeout_secs":
		secs, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("idle_timeout_secs must be an integer: %w", err)
		}
		cfg.IdleTimeoutSecs = secs
	case "agent_port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("agent_port must be an integer: %w", err)
		}
		cfg.AgentPort = port
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}
