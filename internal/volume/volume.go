// Package volume implements the bidirectional SSHFS volume layer: parsing
// a declared Volume into a concrete mount plan, seeding the remote side
// with rsync, mounting it back locally with sshfs, and force-unmounting on
// teardown. The local mount-state file is a single atomically-rewritten
// JSON document keyed by mount point.
package volume

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spuff-dev/spuff/internal/schema"
	"github.com/spuff-dev/spuff/internal/sshconn"
)

// ResolveSource returns v.Source relative to baseDir, or unchanged if it is
// already absolute.
func ResolveSource(v schema.Volume, baseDir string) string {
	if filepath.IsAbs(v.Source) {
		return v.Source
	}
	return filepath.Join(baseDir, v.Source)
}

// ResolveMountPoint picks the local mount point: explicit mount_point,
// else bidirectional-over-source, else an auto-generated path under the
// per-user data directory.
func ResolveMountPoint(v schema.Volume, instanceName, dataDir string) string {
	if v.MountPoint != "" {
		return v.MountPoint
	}
	if v.Source != "" {
		return v.Source
	}
	sanitized := strings.ReplaceAll(strings.TrimPrefix(v.Target, "/"), "/", "-")
	return filepath.Join(dataDir, "mounts", instanceName, sanitized)
}

// State is the JSON-backed record of active VolumeMounts, one file per
// controller machine, rewritten atomically (write-to-temp + rename) on
// every change.
type State struct {
	mu   sync.Mutex
	path string
}

func OpenState(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return &State{path: path}, nil
}

func (s *State) read() ([]schema.VolumeMount, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var mounts []schema.VolumeMount
	if err := json.Unmarshal(data, &mounts); err != nil {
		return nil, fmt.Errorf("corrupt volume state %s: %w", s.path, err)
	}
	return mounts, nil
}

func (s *State) write(mounts []schema.VolumeMount) error {
	data, err := json.MarshalIndent(mounts, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Add records a new mount, replacing any existing entry for the same
// MountPoint.
func (s *State) Add(m schema.VolumeMount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mounts, err := s.read()
	if err != nil {
		return err
	}
	out := make([]schema.VolumeMount, 0, len(mounts)+1)
	for _, existing := range mounts {
		if existing.MountPoint != m.MountPoint {
			out = append(out, existing)
		}
	}
	out = append(out, m)
	return s.write(out)
}

// Remove deletes the entry for mountPoint, if present.
func (s *State) Remove(mountPoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mounts, err := s.read()
	if err != nil {
		return err
	}
	out := make([]schema.VolumeMount, 0, len(mounts))
	for _, existing := range mounts {
		if existing.MountPoint != mountPoint {
			out = append(out, existing)
		}
	}
	return s.write(out)
}

// ForInstance returns every mount recorded for instanceName, the set
// `down` must unmount before destroying the instance.
func (s *State) ForInstance(instanceName string) ([]schema.VolumeMount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mounts, err := s.read()
	if err != nil {
		return nil, err
	}
	var out []schema.VolumeMount
	for _, m := range mounts {
		if m.InstanceName == instanceName {
			out = append(out, m)
		}
	}
	return out, nil
}

// RemoveAllForInstance clears every entry belonging to instanceName,
// regardless of whether unmounting each one actually succeeded. Used by
// `down`'s force-unmount path so the state file is empty even when the VM
// is unreachable.
func (s *State) RemoveAllForInstance(instanceName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mounts, err := s.read()
	if err != nil {
		return err
	}
	out := make([]schema.VolumeMount, 0, len(mounts))
	for _, m := range mounts {
		if m.InstanceName != instanceName {
			out = append(out, m)
		}
	}
	return s.write(out)
}

// Mounter drives the remote-seed + sshfs-mount sequence.
type Mounter struct {
	SSH sshconn.Options
}

// Seed ensures the remote target directory exists, then rsync-seeds it
// from localSource. This runs before MountOnly so initial data is already
// visible on mount.
func (m Mounter) Seed(ctx context.Context, v schema.Volume, localSource string, timeout time.Duration) error {
	target := remoteTarget(v.Target)
	if _, _, _, err := sshconn.RunCommand(ctx, m.SSH, "mkdir -p "+shellQuote(target), timeout); err != nil {
		return fmt.Errorf("ensure remote target exists: %w", err)
	}
	if err := rsync(ctx, m.SSH, localSource, target, timeout); err != nil {
		return fmt.Errorf("seed remote volume: %w", err)
	}
	return nil
}

// MountOnly invokes sshfs through a wrapper script that tolerates spaces
// in the key path. Callers record the resulting VolumeMount themselves on
// success.
func (m Mounter) MountOnly(ctx context.Context, v schema.Volume, mountPoint string, timeout time.Duration) error {
	wrapper, err := writeSSHWrapper(m.SSH)
	if err != nil {
		return fmt.Errorf("write ssh wrapper: %w", err)
	}
	defer os.Remove(wrapper)

	if err := os.MkdirAll(mountPoint, 0755); err != nil {
		return fmt.Errorf("create local mount point: %w", err)
	}

	args := []string{
		fmt.Sprintf("%s@%s:%s", m.SSH.User, m.SSH.Host, remoteTarget(v.Target)),
		mountPoint,
		"-o", "ssh_command=" + wrapper,
	}
	args = append(args, platformMountOptions()...)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sshfs", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sshfs mount failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Mount runs Seed then MountOnly, for callers that don't need the two
// phases to be separately observable states.
func (m Mounter) Mount(ctx context.Context, v schema.Volume, localSource, mountPoint string, timeout time.Duration) error {
	if err := m.Seed(ctx, v, localSource, timeout); err != nil {
		return err
	}
	return m.MountOnly(ctx, v, mountPoint, timeout)
}

// Unmount is idempotent and hardened: a cooperative unmount first,
// escalating to a forced and/or lazy unmount on failure.
// Errors from every attempt are swallowed except the last, because a
// destroyed VM routinely leaves a hanging FUSE endpoint that later
// attempts must still be able to clear.
func Unmount(ctx context.Context, mountPoint string) error {
	if cooperativeUnmount(ctx, mountPoint) == nil {
		return nil
	}
	return forcedUnmount(ctx, mountPoint)
}

func cooperativeUnmount(ctx context.Context, mountPoint string) error {
	if runtime.GOOS == "darwin" {
		return exec.CommandContext(ctx, "umount", mountPoint).Run()
	}
	return exec.CommandContext(ctx, "fusermount", "-u", mountPoint).Run()
}

func forcedUnmount(ctx context.Context, mountPoint string) error {
	if runtime.GOOS == "darwin" {
		if err := exec.CommandContext(ctx, "umount", "-f", mountPoint).Run(); err == nil {
			return nil
		}
		return exec.CommandContext(ctx, "diskutil", "unmount", "force", mountPoint).Run()
	}
	if err := exec.CommandContext(ctx, "fusermount", "-uz", mountPoint).Run(); err == nil {
		return nil
	}
	return exec.CommandContext(ctx, "umount", "-l", mountPoint).Run()
}

func platformMountOptions() []string {
	if runtime.GOOS == "darwin" {
		return []string{"-o", "volname=spuff", "-o", "defer_permissions"}
	}
	return []string{"-o", "reconnect", "-o", "ServerAliveInterval=15"}
}

func rsync(ctx context.Context, opts sshconn.Options, localSource, remoteTarget string, timeout time.Duration) error {
	wrapper, err := writeSSHWrapper(opts)
	if err != nil {
		return err
	}
	defer os.Remove(wrapper)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dest := fmt.Sprintf("%s@%s:%s", opts.User, opts.Host, remoteTarget)
	cmd := exec.CommandContext(ctx, "rsync", "--archive", "--delete", "-e", wrapper, localSource+"/", dest+"/")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// writeSSHWrapper writes a small executable script that runs ssh with the
// connector's option bundle, so paths containing spaces survive being
// passed as sshfs's/rsync's "-o ssh_command"/"-e" value.
func writeSSHWrapper(opts sshconn.Options) (string, error) {
	f, err := os.CreateTemp("", "spuff-ssh-wrapper-*.sh")
	if err != nil {
		return "", err
	}
	defer f.Close()

	script := fmt.Sprintf("#!/bin/sh\nexec ssh -i %q -o StrictHostKeyChecking=accept-new -o UserKnownHostsFile=/dev/null \"$@\"\n", opts.KeyPath)
	if _, err := f.WriteString(script); err != nil {
		return "", err
	}
	if err := f.Chmod(0755); err != nil {
		return "", err
	}
	return f.Name(), nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// remoteTarget rewrites a ~-prefixed target into a home-relative path.
// Remote shells, rsync, and sftp-server all resolve relative paths against
// the login user's home directory, whereas a quoted literal "~" would not
// expand at all.
func remoteTarget(target string) string {
	if target == "~" {
		return "."
	}
	if strings.HasPrefix(target, "~/") {
		return target[2:]
	}
	return target
}

// FuseAvailable reports whether the local machine has the tooling sshfs
// needs: the fuse package on Linux, macFUSE on macOS. Absence is reported
// by the controller as InvalidConfig with a platform-specific install
// hint.
func FuseAvailable() bool {
	if runtime.GOOS == "darwin" {
		_, err := os.Stat("/Library/Filesystems/macfuse.fs")
		return err == nil
	}
	_, err := exec.LookPath("fusermount")
	return err == nil
}

// InstallHint returns the platform-specific guidance shown when
// FuseAvailable is false.
func InstallHint() string {
	if runtime.GOOS == "darwin" {
		return "install macFUSE from https://osxfuse.github.io/ and sshfs via `brew install gromgit/fuse/sshfs-mac`"
	}
	return "install sshfs via your distribution's package manager (e.g. `apt install sshfs`)"
}
