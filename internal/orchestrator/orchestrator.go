package orchestrator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spuff-dev/spuff/internal/bootstrap"
	"github.com/spuff-dev/spuff/internal/provider"
	"github.com/spuff-dev/spuff/internal/schema"
	"github.com/spuff-dev/spuff/internal/sshconn"
	"github.com/spuff-dev/spuff/internal/store"
	"github.com/spuff-dev/spuff/internal/volume"
)

// Config is everything the Orchestrator needs beyond the ProjectSpec
// itself: admin identity, connection options, and the resource request
// (already resolved by the caller through project.EffectiveSize/Region
// against CLI flags and global config).
type Config struct {
	AdminUser  string
	PublicKey  string // raw authorized_keys line embedded in the first-boot document
	PrivateKey string // local private key path, used for every SSH/SCP/SSHFS call

	Region string
	Size   string
	Image  schema.Image

	DataDir         string // e.g. ~/.spuff, parent of the volume mount auto-path
	ProjectBaseDir  string // directory the project file lives in, for resolving relative volume sources
	IdleTimeoutSecs int
	AgentURL        string // where the async bootstrap script downloads spuffd from

	// DevAgentBinary, if non-empty, is a locally built spuffd binary SCP'd
	// into /opt/spuff before the async bootstrap would otherwise download
	// one. Gated on `up --dev`.
	DevAgentBinary string

	NoConnect bool // skip the final interactive session
	Timeouts  schema.Timeouts
}

// Result is what a successful Up returns: the row now recorded in the
// local instance store plus the tunnel ports the caller should forward on
// connect.
type Result struct {
	Instance schema.LocalInstance
	Ports    []int
}

// Orchestrator drives the provisioning pipeline. It holds no state of its
// own between calls — every field is a collaborator injected by the
// caller — so tests can substitute the mock provider and a tempdir store
// without touching any package-level state.
type Orchestrator struct {
	Provider provider.Provider
	Store    *store.Store
	Volumes  *volume.State
	Config   Config

	// OnState, if set, is invoked as each pipeline state begins, letting
	// the CLI print progress without the orchestrator importing cobra or
	// any formatting package.
	OnState func(State)
}

func (o *Orchestrator) report(s State) {
	if o.OnState != nil {
		o.OnState(s)
	}
}

// Up drives the full provisioning pipeline for spec and returns the
// resulting LocalInstance. On any failure it returns a *StageError
// identifying which transition failed; a partially-provisioned instance
// may already be recorded in the store, which is intentional: cancellation
// means no rollback by default, not "leave no trace" — the user can always
// `down` what half-exists.
func (o *Orchestrator) Up(ctx context.Context, spec schema.ProjectSpec) (Result, error) {
	o.report(StateStart)
	if existing, ok, err := o.Store.GetActive(); err != nil {
		return Result{}, fail(StateStart, err)
	} else if ok {
		return Result{}, fail(StateStart, fmt.Errorf("an active instance %q already exists; run `spuff down` first", existing.Name))
	}

	agentToken, err := randomToken()
	if err != nil {
		return Result{}, fail(StateStart, err)
	}

	o.report(StateRenderingDocument)
	doc, err := bootstrap.Render(bootstrap.Input{
		AdminUser:       o.Config.AdminUser,
		PublicKey:       o.Config.PublicKey,
		ProjectSpec:     spec,
		AgentToken:      agentToken,
		AgentURL:        o.Config.AgentURL,
		IdleTimeoutSecs: o.Config.IdleTimeoutSecs,
	})
	if err != nil {
		return Result{}, fail(StateRenderingDocument, err)
	}

	name, err := instanceName()
	if err != nil {
		return Result{}, fail(StateRenderingDocument, err)
	}

	o.report(StateRequestingCreate)
	req := schema.InstanceRequest{
		Name:     name,
		Region:   o.Config.Region,
		Size:     o.Config.Size,
		Image:    o.Config.Image,
		UserData: doc,
		Labels:   schema.WithManagedByLabel(nil),
	}
	inst, err := o.Provider.CreateInstance(ctx, req)
	if err != nil {
		return Result{}, fail(StateRequestingCreate, err)
	}

	// Persist the row before any SSH probing begins, so a ctrl-C
	// mid-provision still leaves a recoverable row.
	local := schema.LocalInstance{
		ID:         inst.ID,
		Name:       name,
		IP:         inst.IP,
		Provider:   o.Provider.Name(),
		Region:     o.Config.Region,
		Size:       o.Config.Size,
		CreatedAt:  inst.CreatedAt,
		AgentToken: agentToken,
	}
	if err := o.Store.Save(local, false); err != nil {
		return Result{}, fail(StateRequestingCreate, err)
	}

	o.report(StateAwaitingActive)
	active, err := o.Provider.WaitReady(ctx, inst.ID)
	if err != nil {
		return Result{}, fail(StateAwaitingActive, err)
	}
	local.IP = active.IP
	if err := o.Store.UpdateIP(inst.ID, active.IP); err != nil {
		return Result{}, fail(StateAwaitingActive, err)
	}

	sshOpts := sshconn.Options{
		User:      o.Config.AdminUser,
		Host:      active.IP,
		KeyPath:   o.Config.PrivateKey,
		ConnectTO: o.Config.Timeouts.SSHConnect,
	}

	o.report(StateAwaitingSSHPort)
	if err := sshconn.WaitTCP(ctx, active.IP, 22, o.Config.Timeouts.SSHConnect); err != nil {
		return Result{}, fail(StateAwaitingSSHPort, err)
	}

	o.report(StateAwaitingSSHLogin)
	if err := sshconn.WaitLogin(ctx, sshOpts, o.Config.Timeouts.SSHConnect); err != nil {
		return Result{}, fail(StateAwaitingSSHLogin, err)
	}

	if o.Config.DevAgentBinary != "" {
		o.report(StateAgentUpload)
		if err := o.uploadDevAgent(ctx, sshOpts); err != nil {
			return Result{}, fail(StateAgentUpload, err)
		}
	}

	o.report(StateAwaitingBootstrapSync)
	if err := o.awaitBootstrap(ctx, sshOpts); err != nil {
		return Result{}, fail(StateAwaitingBootstrapSync, err)
	}

	mounter := volume.Mounter{SSH: sshOpts}

	o.report(StateSeedingVolumes)
	for _, v := range spec.Volumes {
		localSource := volume.ResolveSource(v, o.Config.ProjectBaseDir)
		if err := mounter.Seed(ctx, v, localSource, o.Config.Timeouts.ActionComplete); err != nil {
			return Result{}, fail(StateSeedingVolumes, err)
		}
	}

	o.report(StateMountingVolumes)
	for _, v := range spec.Volumes {
		mountPoint := volume.ResolveMountPoint(v, name, o.Config.DataDir)
		if err := mounter.MountOnly(ctx, v, mountPoint, o.Config.Timeouts.ActionComplete); err != nil {
			return Result{}, fail(StateMountingVolumes, err)
		}
		if err := o.Volumes.Add(schema.VolumeMount{
			MountPoint:   mountPoint,
			RemotePath:   v.Target,
			InstanceName: name,
			MountedAt:    time.Now(),
		}); err != nil {
			return Result{}, fail(StateMountingVolumes, err)
		}
	}

	o.report(StateEstablishingTunnels)
	// Tunnels attach to the interactive invocation itself; there is
	// nothing to do here but record the ports.

	o.report(StateInteractive)
	if !o.Config.NoConnect {
		if err := sshconn.ConnectInteractive(sshOpts, spec.Ports); err != nil {
			return Result{}, fail(StateInteractive, err)
		}
	}

	o.report(StateEnd)
	return Result{Instance: local, Ports: spec.Ports}, nil
}

func (o *Orchestrator) uploadDevAgent(ctx context.Context, sshOpts sshconn.Options) error {
	remoteTmp := "/tmp/spuffd"
	if err := sshconn.ScpUpload(ctx, sshOpts, o.Config.DevAgentBinary, remoteTmp, o.Config.Timeouts.ActionComplete); err != nil {
		return fmt.Errorf("upload agent binary: %w", err)
	}
	cmd := "sudo mkdir -p /opt/spuff && sudo mv " + remoteTmp + " /opt/spuff/spuffd && sudo chmod +x /opt/spuff/spuffd && sudo systemctl restart spuffd"
	exit, _, stderr, err := sshconn.RunCommand(ctx, sshOpts, cmd, o.Config.Timeouts.HTTPRequest)
	if err != nil {
		return fmt.Errorf("install uploaded agent: %w", err)
	}
	if exit != 0 {
		return fmt.Errorf("install uploaded agent exited %d: %s", exit, stderr)
	}
	return nil
}

// awaitBootstrap repeatedly reads /opt/spuff/bootstrap.status over SSH
// until it is "ready" or "failed". A "failed" status is fatal and surfaces
// the tail of cloud-init's own log.
func (o *Orchestrator) awaitBootstrap(ctx context.Context, sshOpts sshconn.Options) error {
	deadline := o.Config.Timeouts.CloudInit
	if deadline <= 0 {
		deadline = schema.DefaultTimeouts().CloudInit
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	for {
		exit, stdout, _, err := sshconn.RunCommand(ctx, sshOpts, "cat /opt/spuff/bootstrap.status", 10*time.Second)
		if err == nil && exit == 0 {
			switch schema.BootstrapStatus(strings.TrimSpace(stdout)) {
			case schema.BootstrapReady:
				return nil
			case schema.BootstrapFailed:
				tail := o.fetchCloudInitTail(ctx, sshOpts)
				return fmt.Errorf("bootstrap failed; cloud-init-output.log tail:\n%s", tail)
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for bootstrap to complete: %w", ctx.Err())
		case <-time.After(5 * time.Second):
		}
	}
}

func (o *Orchestrator) fetchCloudInitTail(ctx context.Context, sshOpts sshconn.Options) string {
	_, stdout, _, err := sshconn.RunCommand(ctx, sshOpts, "tail -n 40 /var/log/cloud-init-output.log", 10*time.Second)
	if err != nil {
		return "(could not read cloud-init-output.log: " + err.Error() + ")"
	}
	return stdout
}

func instanceName() (string, error) {
	suffix, err := randomHex(4)
	if err != nil {
		return "", err
	}
	return "spuff-" + suffix, nil
}

func randomToken() (string, error) {
	return randomHex(24)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// PublicKeyFromFile reads an authorized_keys-format public key file, the
// shape the global config's ssh_public_key field points at.
func PublicKeyFromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read public key %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// DataDirMounts returns the directory volume auto-mount points live under,
// matching volume.ResolveMountPoint's "auto" branch.
func DataDirMounts(dataDir, instanceName string) string {
	return filepath.Join(dataDir, "mounts", instanceName)
}
