// Package sshconn is a thin shell over the ssh, scp, and mosh binaries:
// explicit argv, captured output, trimmed strings, no shell
// interpretation, plus timeouts, process-group kills, and passphrase
// error mapping.
package sshconn

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/ssh"
)

// Options pins the connection parameters every probe and command shares.
type Options struct {
	User       string
	Host       string
	Port       int
	KeyPath    string
	ConnectTO  time.Duration
}

func (o Options) port() int {
	if o.Port == 0 {
		return 22
	}
	return o.Port
}

// baseArgs is the fixed SSH option bundle every non-interactive call
// shares: accept-new host keys, null-sink known_hosts, suppressed logging,
// batch (non-interactive) mode, pinned key path.
func (o Options) baseArgs() []string {
	return []string{
		"-i", o.KeyPath,
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "LogLevel=ERROR",
		"-o", "BatchMode=yes",
		"-p", strconv.Itoa(o.port()),
	}
}

func (o Options) target() string {
	return o.User + "@" + o.Host
}

// interactiveArgs is baseArgs without BatchMode: strict non-interactive
// mode is for probes, and an interactive session must still be able to
// prompt for a key passphrase when no agent holds the key.
func (o Options) interactiveArgs() []string {
	return []string{
		"-i", o.KeyPath,
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "LogLevel=ERROR",
		"-p", strconv.Itoa(o.port()),
	}
}

// PassphraseError is returned when stderr indicates the configured key is
// passphrase-protected and no agent is forwarding it.
type PassphraseError struct {
	Stderr string
}

func (e *PassphraseError) Error() string {
	return "SSH key requires a passphrase; add it to a running ssh-agent (ssh-add) and retry"
}

func mapError(exitErr error, stderr string) error {
	if exitErr == nil {
		return nil
	}
	if strings.Contains(stderr, "Permission denied") && strings.Contains(stderr, "passphrase") {
		return &PassphraseError{Stderr: stderr}
	}
	return fmt.Errorf("%w: %s", exitErr, lastLines(stderr, 10))
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

// WaitTCP polls for a completed TCP handshake to host:port, spacing
// attempts 2s apart. Any completed handshake counts as success.
func WaitTCP(ctx context.Context, host string, port int, deadline time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	for {
		conn, err := net.DialTimeout("tcp", addr, 3*time.Second)
		if err == nil {
			conn.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for tcp connect to %s: %w", addr, ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
}

// WaitLogin repeats `ssh -o BatchMode=yes user@ip echo ok` every 3s until
// it exits zero, matching the AwaitingSshLogin transition.
func WaitLogin(ctx context.Context, opts Options, deadline time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	for {
		exit, _, stderr, err := RunCommand(ctx, opts, "echo ok", 10*time.Second)
		if err == nil && exit == 0 {
			return nil
		}
		if pe := asPassphraseError(err); pe != nil {
			return pe
		}
		_ = stderr
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for ssh login to %s@%s: %w", opts.User, opts.Host, ctx.Err())
		case <-time.After(3 * time.Second):
		}
	}
}

func asPassphraseError(err error) *PassphraseError {
	if err == nil {
		return nil
	}
	if p, ok := err.(*PassphraseError); ok {
		return p
	}
	return nil
}

// RunCommand executes cmd on the remote host non-interactively and returns
// its exit code, stdout, and stderr. The child runs in its own process
// group so it can be killed as a group when timeout elapses.
func RunCommand(ctx context.Context, opts Options, cmd string, timeout time.Duration) (exitCode int, stdout, stderr string, err error) {
	args := append(opts.baseArgs(), opts.target(), cmd)
	c := exec.CommandContext(ctx, "ssh", args...)
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var outBuf, errBuf bytes.Buffer
	c.Stdout = &outBuf
	c.Stderr = &errBuf

	runErr := runWithDeadline(c, timeout)
	stdout = strings.TrimSpace(outBuf.String())
	stderr = strings.TrimSpace(errBuf.String())

	if runErr == nil {
		return 0, stdout, stderr, nil
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else {
		exitCode = -1
	}
	return exitCode, stdout, stderr, mapError(runErr, stderr)
}

// ScpUpload copies a local file to the remote host via scp.
func ScpUpload(ctx context.Context, opts Options, localPath, remotePath string, timeout time.Duration) error {
	// scp uses -P (capital) for port, unlike ssh's -p, so this builds its
	// own argv rather than reusing baseArgs.
	args := scpArgs(opts, localPath, remotePath)

	c := exec.CommandContext(ctx, "scp", args...)
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var errBuf bytes.Buffer
	c.Stderr = &errBuf

	err := runWithDeadline(c, timeout)
	if err != nil {
		return mapError(err, errBuf.String())
	}
	return nil
}

func scpArgs(opts Options, localPath, remotePath string) []string {
	return []string{
		"-i", opts.KeyPath,
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "LogLevel=ERROR",
		"-P", strconv.Itoa(opts.port()),
		localPath,
		opts.target() + ":" + remotePath,
	}
}

// MoshAvailable probes PATH once per invocation; callers cache the result.
func MoshAvailable() bool {
	_, err := exec.LookPath("mosh")
	return err == nil
}

// ConnectInteractive hands the terminal to mosh (preferred) or ssh,
// forwarding tunnelPorts as -L localhost:P:localhost:P entries. Agent
// forwarding is always requested (-A) because the interactive session is
// the point at which private-repo clones over SSH on the VM become
// possible (see spec's open question on bootstrap-time agent forwarding).
func ConnectInteractive(opts Options, tunnelPorts []int) error {
	forwards := make([]string, 0, len(tunnelPorts)*2)
	for _, p := range tunnelPorts {
		forwards = append(forwards, "-L", fmt.Sprintf("localhost:%d:localhost:%d", p, p))
	}

	var c *exec.Cmd
	if MoshAvailable() {
		sshOpts := strings.Join(append([]string{"-A"}, opts.interactiveArgs()...), " ")
		args := append([]string{"--ssh=ssh " + sshOpts}, forwards...)
		args = append(args, opts.target())
		c = exec.Command("mosh", args...)
	} else {
		args := append([]string{"-A"}, opts.interactiveArgs()...)
		args = append(args, forwards...)
		args = append(args, opts.target())
		c = exec.Command("ssh", args...)
	}

	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

// runWithDeadline runs c, killing its whole process group if it does not
// finish within timeout.
func runWithDeadline(c *exec.Cmd, timeout time.Duration) error {
	if err := c.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- c.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		if c.Process != nil {
			_ = syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return fmt.Errorf("command timed out after %s", timeout)
	}
}

// KeyNeedsPassphrase parses the private key at path locally (never sending
// it anywhere) to detect whether it is passphrase-protected, so the
// controller can fail fast with the same guidance WaitLogin/RunCommand
// produce when the passphrase surfaces via ssh's stderr instead.
func KeyNeedsPassphrase(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	_, err = ssh.ParsePrivateKey(data)
	if err == nil {
		return false, nil
	}
	if _, ok := err.(*ssh.PassphraseMissingError); ok {
		return true, nil
	}
	return false, err
}
