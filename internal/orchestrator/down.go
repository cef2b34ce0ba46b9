package orchestrator

import (
	"context"
	"fmt"

	"github.com/spuff-dev/spuff/internal/schema"
	"github.com/spuff-dev/spuff/internal/sshconn"
	"github.com/spuff-dev/spuff/internal/volume"
)

// DownOptions configures one `down` invocation.
type DownOptions struct {
	// Snapshot, if non-empty, is the name to save the instance under via
	// CreateSnapshot before destroying it.
	Snapshot string

	// Force proceeds past a failing pre_down hook, snapshot, or destroy
	// call — needed when the instance is already gone or wedged. The
	// pre_down hook still runs when one is configured.
	Force bool
}

// Down tears the active instance down: force-unmount every volume before
// destroying the instance, so a FUSE client never outlives the VM it
// points at. The pre_down hook, if present, runs over SSH before either
// step.
func (o *Orchestrator) Down(ctx context.Context, spec schema.ProjectSpec, opts DownOptions) error {
	active, ok, err := o.Store.GetActive()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no active instance to tear down")
	}

	if spec.Hooks != nil && spec.Hooks.PreDown != "" && active.IP != "" {
		sshOpts := sshconn.Options{
			User:      o.Config.AdminUser,
			Host:      active.IP,
			KeyPath:   o.Config.PrivateKey,
			ConnectTO: o.Config.Timeouts.SSHConnect,
		}
		_, _, stderr, err := sshconn.RunCommand(ctx, sshOpts, spec.Hooks.PreDown, o.Config.Timeouts.ActionComplete)
		if err != nil && !opts.Force {
			return fmt.Errorf("pre_down hook failed: %w: %s", err, stderr)
		}
	}

	if opts.Snapshot != "" {
		if _, err := o.Provider.CreateSnapshot(ctx, active.ID, opts.Snapshot); err != nil && !opts.Force {
			return fmt.Errorf("create snapshot %q: %w", opts.Snapshot, err)
		}
	}

	mounts, err := o.Volumes.ForInstance(active.Name)
	if err != nil {
		return err
	}
	for _, m := range mounts {
		// Unmount is idempotent and hardened (cooperative then forced);
		// its own error is swallowed here because a destroyed-or-
		// unreachable VM routinely leaves a hanging FUSE endpoint that
		// `down` must still clear.
		_ = volume.Unmount(ctx, m.MountPoint)
	}
	if err := o.Volumes.RemoveAllForInstance(active.Name); err != nil {
		return err
	}

	if err := o.Provider.DestroyInstance(ctx, active.ID); err != nil && !opts.Force {
		return fmt.Errorf("destroy instance %q: %w", active.ID, err)
	}

	return o.Store.Remove(active.ID)
}
