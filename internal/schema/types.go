// Package schema holds the types shared between the spuff controller and
// the spuffd agent. Both binaries import this package instead of each
// other: the controller renders a ProjectSpec into the first-boot
// document, the agent reads that same ProjectSpec back out of
// /opt/spuff/project.json and reports a ProjectStatus over HTTP that the
// controller polls. Promoting the shared shapes here breaks what would
// otherwise be a cyclic dependency between the two deployables.
package schema

import "time"

// InstanceStatus is the cloud-agnostic lifecycle state of a ProviderInstance.
type InstanceStatus string

const (
	StatusNew     InstanceStatus = "New"
	StatusActive  InstanceStatus = "Active"
	StatusOff     InstanceStatus = "Off"
	StatusArchive InstanceStatus = "Archive"
)

// UnknownStatus builds the catch-all Unknown(raw) status variant.
func UnknownStatus(raw string) InstanceStatus {
	return InstanceStatus("Unknown:" + raw)
}

// ImageKind discriminates the tagged Image union.
type ImageKind string

const (
	ImageUbuntu   ImageKind = "ubuntu"
	ImageDebian   ImageKind = "debian"
	ImageCustom   ImageKind = "custom"
	ImageSnapshot ImageKind = "snapshot"
)

// Image is a tagged value:
// Ubuntu(version) | Debian(version) | Custom(vendor_id) | Snapshot(vendor_id).
type Image struct {
	Kind  ImageKind `json:"kind"`
	Value string    `json:"value"`
}

func UbuntuImage(version string) Image   { return Image{Kind: ImageUbuntu, Value: version} }
func DebianImage(version string) Image   { return Image{Kind: ImageDebian, Value: version} }
func CustomImage(vendorID string) Image  { return Image{Kind: ImageCustom, Value: vendorID} }
func SnapshotImage(vendorID string) Image { return Image{Kind: ImageSnapshot, Value: vendorID} }

// ManagedByLabel is the label every InstanceRequest carries so providers
// can filter list_instances() down to resources spuff actually owns.
const ManagedByLabel = "managed-by"

// ManagedByValue is the value paired with ManagedByLabel.
const ManagedByValue = "spuff"

// InstanceRequest is the cloud-agnostic creation input. Built once by the
// Orchestrator and never mutated afterward.
type InstanceRequest struct {
	Name     string            `json:"name"`
	Region   string            `json:"region"`
	Size     string            `json:"size"`
	Image    Image             `json:"image"`
	UserData string            `json:"user_data,omitempty"`
	Labels   map[string]string `json:"labels"`
}

// WithManagedByLabel returns a copy of labels with the spuff ownership
// label always present, overwriting any caller-supplied value for it.
func WithManagedByLabel(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out[ManagedByLabel] = ManagedByValue
	return out
}

// ProviderInstance is the cloud view of an instance as returned by a
// Provider adapter.
type ProviderInstance struct {
	ID        string         `json:"id"`
	IP        string         `json:"ip"` // "" / "0.0.0.0" means not yet assigned
	Status    InstanceStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// IPAssigned reports whether the instance has a usable public IP, i.e. the
// address is present and not the unspecified address.
func (p ProviderInstance) IPAssigned() bool {
	return p.IP != "" && p.IP != "0.0.0.0" && p.IP != "::"
}

// Ready reports whether the instance is actually usable: status Active
// AND a real public IP. WaitReady blocks on exactly this condition.
func (p ProviderInstance) Ready() bool {
	return p.Status == StatusActive && p.IPAssigned()
}

// LocalInstance is the one "active" row the local instance store may hold.
type LocalInstance struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IP        string    `json:"ip"`
	Provider  string    `json:"provider"`
	Region    string    `json:"region"`
	Size      string    `json:"size"`
	CreatedAt time.Time `json:"created_at"`

	// AgentToken is the bearer token the first-boot document embedded in
	// this instance's /opt/spuff/agent.env, kept here so the controller
	// can re-authenticate to spuffd on a later `agent`/`ai`/`status
	// --detailed`/`watch` invocation without reading agent.env back from
	// the VM.
	AgentToken string `json:"agent_token,omitempty"`
}

// Snapshot is a point-in-time image of an instance's disk.
type Snapshot struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Timeouts bounds every blocking operation a Provider or the Orchestrator
// performs. Every field has a default baked into DefaultTimeouts.
type Timeouts struct {
	InstanceReady  time.Duration `json:"instance_ready"`
	ActionComplete time.Duration `json:"action_complete"`
	PollInterval   time.Duration `json:"poll_interval"`
	HTTPRequest    time.Duration `json:"http_request"`
	SSHConnect     time.Duration `json:"ssh_connect"`
	CloudInit      time.Duration `json:"cloud_init"`
}

// DefaultTimeouts returns the stock timeout bundle.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		InstanceReady:  300 * time.Second,
		ActionComplete: 600 * time.Second,
		PollInterval:   5 * time.Second,
		HTTPRequest:    30 * time.Second,
		SSHConnect:     300 * time.Second,
		CloudInit:      600 * time.Second,
	}
}
