package schema

import "time"

// HealthResponse is the unauthenticated /health payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// StatusResponse is the /status payload.
type StatusResponse struct {
	UptimeSeconds    int64  `json:"uptime_seconds"`
	IdleSeconds      int64  `json:"idle_seconds"`
	Hostname         string `json:"hostname"`
	CloudInitDone    bool   `json:"cloud_init_done"`
	BootstrapStatus  string `json:"bootstrap_status"`
	BootstrapReady   bool   `json:"bootstrap_ready"`
	AgentVersion     string `json:"agent_version"`
	DestroyRequested bool   `json:"destroy_requested"`
}

// MetricsResponse is the /metrics payload.
type MetricsResponse struct {
	CPUPercent   float64   `json:"cpu_percent"`
	MemUsed      uint64    `json:"mem_used_bytes"`
	MemTotal     uint64    `json:"mem_total_bytes"`
	DiskUsed     uint64    `json:"disk_used_bytes"`
	DiskTotal    uint64    `json:"disk_total_bytes"`
	Load1        float64   `json:"load1"`
	Load5        float64   `json:"load5"`
	Load15       float64   `json:"load15"`
	Timestamp    time.Time `json:"timestamp"`
}

// ProcessInfo is one entry of the /processes response.
type ProcessInfo struct {
	PID        int     `json:"pid"`
	Name       string  `json:"name"`
	CPUPercent float64 `json:"cpu_percent"`
}

// ExecRequest is the /exec request body.
type ExecRequest struct {
	Command     string `json:"command"`
	TimeoutSecs int    `json:"timeout_secs"`
}

// ExecResponse is the /exec response body.
type ExecResponse struct {
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	DurationMs int64  `json:"duration_ms"`
}

// HeartbeatResponse is the /heartbeat response body.
type HeartbeatResponse struct {
	Timestamp time.Time `json:"timestamp"`
}

// CloudInitResponse is the /cloud-init response body.
type CloudInitResponse struct {
	Status       string   `json:"status"`
	Done         bool     `json:"done"`
	Errors       []string `json:"errors,omitempty"`
	BootFinished *bool    `json:"boot_finished,omitempty"`
}

// SetupResponse is the /project/setup response body. The HTTP status
// carries the idempotence signal (202 newly started, 200 already
// running/done); this body is informational.
type SetupResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is returned for authentication failures and other
// endpoint-level errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// BootstrapStatus is the closed set of values written to
// /opt/spuff/bootstrap.status.
type BootstrapStatus string

const (
	BootstrapUnknown BootstrapStatus = "unknown"
	BootstrapRunning BootstrapStatus = "running"
	BootstrapReady   BootstrapStatus = "ready"
	BootstrapFailed  BootstrapStatus = "failed"
)
