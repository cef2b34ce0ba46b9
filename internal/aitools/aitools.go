// Package aitools is the catalog of installable AI CLI tools behind the
// `up --ai-tools` flag, the `ai {list,status,install,info}` command group,
// and ProjectSpec.AITools. Shared between the spuff CLI (which needs it to
// answer `ai list`/`ai info` without touching the VM) and spuffd's setup
// executor (which needs it to actually run the installs), the same way
// internal/schema is shared to avoid a controller/agent cyclic dependency.
package aitools

// Tool describes one installable AI CLI.
type Tool struct {
	Name        string
	Description string
	Command     string // run via `bash -lc` as the admin user
}

// Catalog is the closed set of AI CLIs spuff knows how to install. Order
// matters only for display; installation itself fans out like bundles.
var Catalog = []Tool{
	{
		Name:        "claude",
		Description: "Anthropic's Claude Code CLI",
		Command:     `curl -fsSL https://claude.ai/install.sh | bash`,
	},
	{
		Name:        "codex",
		Description: "OpenAI's Codex CLI",
		Command:     `export NVM_DIR="$HOME/.nvm" && . "$NVM_DIR/nvm.sh" && npm install -g @openai/codex`,
	},
	{
		Name:        "gemini",
		Description: "Google's Gemini CLI",
		Command:     `export NVM_DIR="$HOME/.nvm" && . "$NVM_DIR/nvm.sh" && npm install -g @google/gemini-cli`,
	},
	{
		Name:        "cursor-agent",
		Description: "Cursor's headless agent CLI",
		Command:     `curl -fsSL https://cursor.com/install.sh | bash`,
	},
	{
		Name:        "aider",
		Description: "aider, the open-source AI pair-programming CLI",
		Command:     `python3 -m pip install --break-system-packages aider-install && aider-install`,
	},
}

// Names returns every catalog entry's name, in catalog order.
func Names() []string {
	out := make([]string, len(Catalog))
	for i, t := range Catalog {
		out[i] = t.Name
	}
	return out
}

// Find returns the Tool named name, or (zero, false) if unknown.
func Find(name string) (Tool, bool) {
	for _, t := range Catalog {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// ExpandAll resolves the `--ai-tools all` CLI flag into every catalog name.
func ExpandAll() []string {
	return Names()
}
