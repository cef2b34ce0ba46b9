package schema

import "time"

// StepStatus is the per-step progress value the setup executor writes.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepDone       StepStatus = "done"
	StepFailed     StepStatus = "failed"
	StepSkipped    StepStatus = "skipped"
)

// BundleStatus tracks one bundle install.
type BundleStatus struct {
	Name    Bundle     `json:"name"`
	Status  StepStatus `json:"status"`
	Version string     `json:"version,omitempty"`
}

// PackagesStatus tracks the single system-package install transaction.
type PackagesStatus struct {
	Status    StepStatus `json:"status"`
	Installed []string   `json:"installed,omitempty"`
	Failed    []string   `json:"failed,omitempty"`
}

// ServicesStatus tracks the docker-compose service start.
type ServicesStatus struct {
	Status     StepStatus `json:"status"`
	Containers []string   `json:"containers,omitempty"`
}

// RepositoryStatus tracks one repository clone.
type RepositoryStatus struct {
	URL    string     `json:"url"`
	Path   string     `json:"path"`
	Status StepStatus `json:"status"`
}

// ScriptStatus tracks one `setup` command.
type ScriptStatus struct {
	Command  string     `json:"command"`
	Status   StepStatus `json:"status"`
	ExitCode *int       `json:"exit_code,omitempty"`
}

// AIToolStatus tracks one entry of ProjectSpec.AITools, backed by the
// internal/aitools catalog.
type AIToolStatus struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
}

// ProjectStatus is the live-on-the-VM record the agent serves at
// /project/status. The setup executor is the sole writer; many HTTP
// readers observe it concurrently.
type ProjectStatus struct {
	Started          bool               `json:"started"`
	Completed        bool               `json:"completed"`
	Bundles          []BundleStatus     `json:"bundles,omitempty"`
	Packages         PackagesStatus     `json:"packages"`
	Services         ServicesStatus     `json:"services"`
	Repositories     []RepositoryStatus `json:"repositories,omitempty"`
	Scripts          []ScriptStatus     `json:"scripts,omitempty"`
	AITools          []AIToolStatus     `json:"ai_tools,omitempty"`
	DestroyRequested bool               `json:"destroy_requested"`
}

// VolumeMount is one entry of the local volume-state file.
type VolumeMount struct {
	MountPoint   string    `json:"mount_point"`
	RemotePath   string    `json:"remote_path"`
	InstanceName string    `json:"instance_name"`
	MountedAt    time.Time `json:"mounted_at"`
}
