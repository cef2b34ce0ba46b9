// Package bootstrap renders the declarative first-boot document a Provider
// hands to a new instance, and resolves the env-substitution syntax a
// ProjectSpec's env map may contain. The document is assembled section by
// section with strings.Builder — every value is known at render time, so a
// template engine would add indirection without adding safety.
package bootstrap

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spuff-dev/spuff/internal/schema"
)

// MaxDocumentSize is a conservative 48 KiB ceiling accommodating the
// tightest vendor user-data limit.
const MaxDocumentSize = 48 * 1024

// Input is everything the document builder needs. AdminUser/PublicKey come
// from global config; ProjectSpec is the already env-resolved spec to
// embed; AgentToken authenticates the agent's HTTP surface once it starts.
type Input struct {
	AdminUser       string
	PublicKey       string
	ProjectSpec     schema.ProjectSpec
	AgentToken      string
	AgentURL        string // where the asynchronous script downloads the agent binary from
	IdleTimeoutSecs int    // 0 means the agent applies its own default
}

// baselinePackages is the fixed baseline installed regardless of the
// project's own `packages` list.
var baselinePackages = []string{"git", "curl", "vim", "htop", "unzip", "build-essential"}

// Render produces the vendor-neutral first-boot document. It is pure:
// given identical inputs it returns byte-identical output.
// Base64-wrapping is left to the Provider adapter, not decided here.
func Render(in Input) (string, error) {
	if _, err := json.Marshal(in.ProjectSpec); err != nil {
		return "", fmt.Errorf("marshal project spec: %w", err)
	}

	var b strings.Builder
	b.WriteString("#cloud-config\n")

	writeUsers(&b, in.AdminUser, in.PublicKey)
	writeRootLoginDisabled(&b)
	writePackages(&b)
	writeFiles(&b, in)
	writeRunCmd(&b, in.AgentURL)

	doc := b.String()
	if len(doc) > MaxDocumentSize {
		return "", fmt.Errorf("first-boot document is %d bytes, over the %d byte limit", len(doc), MaxDocumentSize)
	}
	return doc, nil
}

func writeUsers(b *strings.Builder, user, publicKey string) {
	b.WriteString("users:\n")
	b.WriteString("  - name: " + user + "\n")
	b.WriteString("    sudo: ALL=(ALL) NOPASSWD:ALL\n")
	b.WriteString("    shell: /bin/bash\n")
	b.WriteString("    lock_passwd: true\n")
	b.WriteString("    ssh_authorized_keys:\n")
	b.WriteString("      - " + publicKey + "\n")
}

func writeRootLoginDisabled(b *strings.Builder) {
	b.WriteString("disable_root: true\n")
	b.WriteString("ssh_pwauth: false\n")
}

func writePackages(b *strings.Builder) {
	b.WriteString("package_update: true\n")
	b.WriteString("packages:\n")
	for _, pkg := range baselinePackages {
		b.WriteString("  - " + pkg + "\n")
	}
}

func writeFiles(b *strings.Builder, in Input) {
	b.WriteString("write_files:\n")

	agentEnv := "SPUFF_AGENT_TOKEN=" + in.AgentToken + "\n" +
		"SPUFF_ADMIN_USER=" + in.AdminUser + "\n"
	if in.IdleTimeoutSecs > 0 {
		agentEnv += fmt.Sprintf("SPUFF_IDLE_TIMEOUT_SECONDS=%d\n", in.IdleTimeoutSecs)
	}

	projectJSON, _ := json.Marshal(in.ProjectSpec)
	writeFileEntry(b, "/opt/spuff/project.json", "0644", string(projectJSON))
	writeFileEntry(b, "/opt/spuff/agent.env", "0600", agentEnv)
	writeFileEntry(b, "/opt/spuff/bootstrap.status", "0644", string(schema.BootstrapUnknown)+"\n")
	writeFileEntry(b, "/opt/spuff/bootstrap-sync.sh", "0755", syncScript)
	writeFileEntry(b, "/opt/spuff/bootstrap-async.sh", "0755", asyncScript)
	writeFileEntry(b, "/etc/systemd/system/spuffd.service", "0644", agentUnit)
}

func writeFileEntry(b *strings.Builder, path, perms, content string) {
	b.WriteString("  - path: " + path + "\n")
	b.WriteString("    permissions: '" + perms + "'\n")
	b.WriteString("    encoding: b64\n")
	b.WriteString("    content: " + base64.StdEncoding.EncodeToString([]byte(content)) + "\n")
}

func writeRunCmd(b *strings.Builder, agentURL string) {
	b.WriteString("runcmd:\n")
	b.WriteString("  - mkdir -p /opt/spuff /var/log/spuff/scripts\n")
	b.WriteString("  - [ bash, -c, \"echo running > /opt/spuff/.bootstrap.status.tmp && mv /opt/spuff/.bootstrap.status.tmp /opt/spuff/bootstrap.status\" ]\n")
	b.WriteString("  - [ bash, /opt/spuff/bootstrap-sync.sh ]\n")
	if agentURL != "" {
		b.WriteString("  - [ bash, -c, \"test -x /opt/spuff/spuffd || { curl -fsSL " + agentURL + " -o /opt/spuff/spuffd && chmod +x /opt/spuff/spuffd; }\" ]\n")
	}
	b.WriteString("  - systemctl daemon-reload\n")
	b.WriteString("  - systemctl enable --now spuffd\n")
	b.WriteString("  - [ bash, -c, \"nohup bash /opt/spuff/bootstrap-async.sh >/var/log/spuff/bootstrap-async.log 2>&1 &\" ]\n")
}

// syncScript installs only what is required for SSH login to be useful:
// container runtime, minimal shell tools, and the directory skeleton the
// agent expects. Everything slow belongs to the asynchronous phase.
const syncScript = `#!/bin/bash
set -euo pipefail
mkdir -p /opt/spuff /var/log/spuff/scripts
command -v docker >/dev/null 2>&1 || curl -fsSL https://get.docker.com | sh
`

// asyncScript hands the heavyweight installation off to the agent's setup
// executor via POST /project/setup, retrying while spuffd is still coming
// up, then marks the bootstrap ready so the controller's
// AwaitingBootstrapSync gate opens. The toolchain installs themselves
// proceed in the background under the agent, observable at /project/status.
const asyncScript = `#!/bin/bash
set -uo pipefail

# Readers (the agent's fsnotify watch, the controller's remote cat) must
# never observe a half-written status, so every write goes through a
# same-directory temp file and an atomic rename.
set_status() {
  printf '%s\n' "$1" > /opt/spuff/.bootstrap.status.tmp \
    && mv /opt/spuff/.bootstrap.status.tmp /opt/spuff/bootstrap.status
}

set_status running
token="$(grep -oP '(?<=SPUFF_AGENT_TOKEN=).*' /opt/spuff/agent.env)"
for _ in $(seq 1 30); do
  if curl -fsS -m 5 -X POST http://127.0.0.1:7575/project/setup \
      -H "X-Spuff-Token: ${token}" >/dev/null 2>&1; then
    set_status ready
    exit 0
  fi
  sleep 2
done
set_status failed
`

// agentUnit is the systemd unit that supervises spuffd.
const agentUnit = `[Unit]
Description=spuff agent
After=network.target

[Service]
EnvironmentFile=/opt/spuff/agent.env
ExecStart=/opt/spuff/spuffd
Restart=always
RestartSec=2

[Install]
WantedBy=multi-user.target
`
