package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spuff-dev/spuff/internal/config"
	"github.com/spuff-dev/spuff/internal/orchestrator"
	"github.com/spuff-dev/spuff/internal/provider"
	_ "github.com/spuff-dev/spuff/internal/provider/digitalocean"
	_ "github.com/spuff-dev/spuff/internal/provider/mock"
	"github.com/spuff-dev/spuff/internal/schema"
	"github.com/spuff-dev/spuff/internal/sshconn"
	"github.com/spuff-dev/spuff/internal/store"
	"github.com/spuff-dev/spuff/internal/volume"
)

// Every helper here either returns a value for the RunE function to
// print, or prints plain text directly — no colored tables, no TUI
// widgets. Formatting stays in this package; the internal packages return
// structured results.

// resolveProjectDir returns --project-dir if set, else the working directory.
func resolveProjectDir() (string, error) {
	if projectDir != "" {
		return projectDir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("cannot determine working directory: %w", err)
	}
	return cwd, nil
}

// resolveConfigPath returns --config if set, else ~/.spuff/config.yaml.
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

// loadGlobalConfig reads the global config file, failing with a clear
// message if `init` has never been run.
func loadGlobalConfig() (config.Config, string, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return config.Config{}, "", err
	}
	if !config.Exists(path) {
		return config.Config{}, "", fmt.Errorf("no config file at %s; run `spuff init` first", path)
	}
	cfg, err := config.Load(path)
	return cfg, path, err
}

// dataDir returns the directory the local instance store, volume-state
// file, and auto-mounted volumes live under.
func dataDir(cfg config.Config) string {
	if cfg.DataDir != "" {
		return cfg.DataDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".spuff")
}

// openStores opens the local instance store and volume-state file under
// cfg's data directory, creating the directory if necessary.
func openStores(cfg config.Config) (*store.Store, *volume.State, error) {
	dir := dataDir(cfg)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create data directory %s: %w", dir, err)
	}
	st, err := store.Open(filepath.Join(dir, "instances.json"))
	if err != nil {
		return nil, nil, err
	}
	vs, err := volume.OpenState(filepath.Join(dir, "volumes.json"))
	if err != nil {
		return nil, nil, err
	}
	return st, vs, nil
}

// buildProvider constructs the provider named by cfg.Provider, reading its
// API token from the conventional <PROVIDER>_TOKEN environment variable
// (falling back to SPUFF_API_TOKEN).
func buildProvider(cfg config.Config) (provider.Provider, error) {
	token := providerToken(cfg.Provider)
	if token == "" {
		return nil, fmt.Errorf("no API token found; set %s_TOKEN or SPUFF_API_TOKEN", envPrefix(cfg.Provider))
	}
	return provider.New(cfg.Provider, token, cfg.Timeouts())
}

func envPrefix(providerName string) string {
	out := make([]byte, 0, len(providerName))
	for _, r := range providerName {
		if r >= 'a' && r <= 'z' {
			r = r - 'a' + 'A'
		}
		out = append(out, byte(r))
	}
	return string(out)
}

func providerToken(providerName string) string {
	if v := os.Getenv(envPrefix(providerName) + "_TOKEN"); v != "" {
		return v
	}
	return os.Getenv("SPUFF_API_TOKEN")
}

// activeInstance looks up the one active instance, failing with a clear
// message if none exists.
func activeInstance(st *store.Store) (schema.LocalInstance, error) {
	inst, ok, err := st.GetActive()
	if err != nil {
		return schema.LocalInstance{}, err
	}
	if !ok {
		return schema.LocalInstance{}, fmt.Errorf("no active instance; run `spuff up` first")
	}
	return inst, nil
}

// sshOptionsFor builds the sshconn.Options the active instance's admin
// user and the global config's private key resolve to.
func sshOptionsFor(cfg config.Config, inst schema.LocalInstance) sshconn.Options {
	return sshconn.Options{
		User:      cfg.AdminUser,
		Host:      inst.IP,
		KeyPath:   cfg.SSHPrivateKey,
		ConnectTO: cfg.Timeouts().SSHConnect,
	}
}

// buildOrchestrator assembles an *orchestrator.Orchestrator for
// `up`/`down`; when verbose is set it prints each pipeline state as it
// begins via Orchestrator.OnState so the core package itself never imports a
// formatting library.
func buildOrchestrator(cfg config.Config, prov provider.Provider, st *store.Store, vs *volume.State, oc orchestrator.Config, verbose bool) *orchestrator.Orchestrator {
	o := &orchestrator.Orchestrator{
		Provider: prov,
		Store:    st,
		Volumes:  vs,
		Config:   oc,
	}
	if verbose {
		o.OnState = func(s orchestrator.State) {
			fmt.Printf("==> %s\n", s)
		}
	}
	return o
}
