// Package agent implements spuffd, the HTTP service + setup executor +
// idle watchdog that runs on every provisioned VM. The HTTP surface is a
// set of small handleX(w, r) functions behind token-auth middleware,
// backed by jsonResponse/jsonError helpers; the setup executor and
// watchdog run as background tasks of the same process.
package agent

import (
	"os"
	"strconv"
	"time"
)

// Config is everything the agent needs at startup. Every field is sourced
// from /opt/spuff/agent.env (written by the first-boot document) or from
// defaults baked in here.
type Config struct {
	// ListenAddr is always loopback-only; the controller reaches it
	// through an SSH port forward, never directly.
	ListenAddr string

	// Token is compared in constant time against the X-Spuff-Token header.
	Token string

	// AdminUser is the unprivileged account setup commands and repository
	// clones run as.
	AdminUser string

	// ProjectSpecPath is where the controller embedded the ProjectSpec.
	ProjectSpecPath string

	// StatusPath is where ProjectStatus is persisted between restarts.
	StatusPath string

	// BootstrapStatusPath is the file the two-phase bootstrap writes to
	// and the agent watches with fsnotify.
	BootstrapStatusPath string

	// ScriptLogDir is where setup-command output lands, one file per step.
	ScriptLogDir string

	// IdleTimeout is how long the VM may sit idle before the watchdog
	// requests destruction. Zero disables the watchdog.
	IdleTimeout time.Duration

	// Version is reported at /health and /status.
	Version string
}

// DefaultConfig returns the paths the first-boot document always writes to
// (see internal/bootstrap/document.go) plus a conservative idle default.
func DefaultConfig() Config {
	return Config{
		ListenAddr:          "127.0.0.1:7575",
		ProjectSpecPath:     "/opt/spuff/project.json",
		StatusPath:          "/opt/spuff/status.json",
		BootstrapStatusPath: "/opt/spuff/bootstrap.status",
		ScriptLogDir:        "/var/log/spuff/scripts",
		IdleTimeout:         2 * time.Hour,
		Version:             "dev",
	}
}

// ConfigFromEnv overlays DefaultConfig with values read from the process
// environment, the way the systemd unit's EnvironmentFile= populates it.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("SPUFF_AGENT_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("SPUFF_ADMIN_USER"); v != "" {
		cfg.AdminUser = v
	}
	if v := os.Getenv("SPUFF_IDLE_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.IdleTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("SPUFF_AGENT_VERSION"); v != "" {
		cfg.Version = v
	}
	return cfg
}
