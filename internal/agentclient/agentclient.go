// Package agentclient lets the controller CLI reach spuffd's loopback-only
// HTTP API by forwarding a local port over SSH and then speaking plain
// net/http against it. It backs the `agent`, `ai status`, `ai install`,
// `status --detailed` and `watch` subcommands, and follows internal/sshconn's subprocess
// conventions (explicit argv, process-group kill on teardown) generalized
// from a one-shot command to a long-lived background forward.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/spuff-dev/spuff/internal/schema"
	"github.com/spuff-dev/spuff/internal/sshconn"
)

// Tunnel is a background `ssh -L` process forwarding a local port to
// spuffd's loopback listener on the remote host.
type Tunnel struct {
	cmd       *exec.Cmd
	LocalPort int
}

// Open starts the forward and blocks until the local port accepts
// connections or timeout elapses.
func Open(ctx context.Context, opts sshconn.Options, remotePort int, timeout time.Duration) (*Tunnel, error) {
	localPort, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("pick local port: %w", err)
	}

	args := []string{
		"-i", opts.KeyPath,
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "LogLevel=ERROR",
		"-o", "ExitOnForwardFailure=yes",
		"-o", "BatchMode=yes",
		"-N",
		"-L", fmt.Sprintf("127.0.0.1:%d:127.0.0.1:%d", localPort, remotePort),
		"-p", strconv.Itoa(portOrDefault(opts.Port)),
		opts.User + "@" + opts.Host,
	}

	cmd := exec.Command("ssh", args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ssh tunnel: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", localPort), 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return &Tunnel{cmd: cmd, LocalPort: localPort}, nil
		}
		time.Sleep(200 * time.Millisecond)
	}

	_ = cmd.Process.Kill()
	return nil, fmt.Errorf("ssh tunnel to 127.0.0.1:%d did not come up within %s", localPort, timeout)
}

// Close tears down the forward by killing its whole process group, the
// same escalation internal/sshconn.runWithDeadline uses for timed-out
// subprocesses.
func (t *Tunnel) Close() error {
	if t == nil || t.cmd == nil || t.cmd.Process == nil {
		return nil
	}
	_ = syscall.Kill(-t.cmd.Process.Pid, syscall.SIGTERM)
	_, err := t.cmd.Process.Wait()
	return err
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func portOrDefault(p int) int {
	if p == 0 {
		return 22
	}
	return p
}

// Client is a minimal HTTP client for spuffd's authenticated endpoints,
// addressed through an already-open Tunnel.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a Client pointed at the tunnel's local port.
func New(t *Tunnel, token string) *Client {
	return newClient(fmt.Sprintf("http://127.0.0.1:%d", t.LocalPort), token)
}

func newClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("X-Spuff-Token", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("agent rejected token (401 unauthorized)")
	}
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusAccepted {
		var apiErr schema.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("agent returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("agent returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) Status(ctx context.Context) (schema.StatusResponse, error) {
	var out schema.StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", nil, &out)
	return out, err
}

func (c *Client) Metrics(ctx context.Context) (schema.MetricsResponse, error) {
	var out schema.MetricsResponse
	err := c.do(ctx, http.MethodGet, "/metrics", nil, &out)
	return out, err
}

func (c *Client) Processes(ctx context.Context, n int) ([]schema.ProcessInfo, error) {
	var out []schema.ProcessInfo
	path := "/processes"
	if n > 0 {
		path += "?n=" + strconv.Itoa(n)
	}
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) Logs(ctx context.Context, file string, lines int) ([]string, error) {
	var out []string
	path := "/logs?file=" + url.QueryEscape(file)
	if lines > 0 {
		path += "&lines=" + strconv.Itoa(lines)
	}
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) ProjectStatus(ctx context.Context) (schema.ProjectStatus, error) {
	var out schema.ProjectStatus
	err := c.do(ctx, http.MethodGet, "/project/status", nil, &out)
	return out, err
}

func (c *Client) TriggerSetup(ctx context.Context) (schema.SetupResponse, error) {
	var out schema.SetupResponse
	err := c.do(ctx, http.MethodPost, "/project/setup", nil, &out)
	return out, err
}

func (c *Client) Exec(ctx context.Context, command string, timeoutSecs int) (schema.ExecResponse, error) {
	var out schema.ExecResponse
	req := schema.ExecRequest{Command: command, TimeoutSecs: timeoutSecs}
	err := c.do(ctx, http.MethodPost, "/exec", req, &out)
	return out, err
}
