package agent

import "github.com/spuff-dev/spuff/internal/schema"

// bundleTool is one installable unit inside a bundle. A required tool
// failing marks the whole bundle failed; an optional tool failing is
// logged but never fails the bundle.
type bundleTool struct {
	Name     string
	Required bool
	Command  string // run via `bash -lc`, as root
}

// bundleCatalog is the curated tool set per language ecosystem. These are
// ordinary apt/curl/toolchain-installer invocations in the same spirit as
// internal/bootstrap's baselinePackages and syncScript.
var bundleCatalog = map[schema.Bundle][]bundleTool{
	schema.BundleGo: {
		{Name: "go", Required: true, Command: `curl -fsSL https://go.dev/dl/go1.23.4.linux-amd64.tar.gz -o /tmp/go.tgz && rm -rf /usr/local/go && tar -C /usr/local -xzf /tmp/go.tgz && ln -sf /usr/local/go/bin/go /usr/local/bin/go && ln -sf /usr/local/go/bin/gofmt /usr/local/bin/gofmt`},
		{Name: "goimports", Required: false, Command: `/usr/local/go/bin/go install golang.org/x/tools/cmd/goimports@latest`},
		{Name: "delve", Required: false, Command: `/usr/local/go/bin/go install github.com/go-delve/delve/cmd/dlv@latest`},
	},
	schema.BundleRust: {
		{Name: "rustup", Required: true, Command: `curl --proto '=https' --tlsv1.2 -sSf https://sh.rustup.rs | sh -s -- -y --default-toolchain stable`},
		{Name: "cargo-watch", Required: false, Command: `$HOME/.cargo/bin/cargo install cargo-watch`},
		{Name: "cargo-edit", Required: false, Command: `$HOME/.cargo/bin/cargo install cargo-edit`},
	},
	schema.BundlePython: {
		{Name: "python3", Required: true, Command: `apt-get update -y && apt-get install -y python3 python3-venv python3-pip`},
		{Name: "poetry", Required: false, Command: `python3 -m pip install --break-system-packages pipx && python3 -m pipx install poetry`},
		{Name: "black", Required: false, Command: `python3 -m pipx install black`},
	},
	schema.BundleNode: {
		{Name: "nvm+node", Required: true, Command: `curl -o- https://raw.githubusercontent.com/nvm-sh/nvm/v0.40.1/install.sh | bash && export NVM_DIR="$HOME/.nvm" && . "$NVM_DIR/nvm.sh" && nvm install --lts`},
		{Name: "pnpm", Required: false, Command: `export NVM_DIR="$HOME/.nvm" && . "$NVM_DIR/nvm.sh" && npm install -g pnpm`},
		{Name: "yarn", Required: false, Command: `export NVM_DIR="$HOME/.nvm" && . "$NVM_DIR/nvm.sh" && npm install -g yarn`},
	},
	schema.BundleElixir: {
		{Name: "elixir", Required: true, Command: `apt-get update -y && apt-get install -y elixir erlang-dev`},
		{Name: "hex", Required: false, Command: `mix local.hex --force`},
		{Name: "phx_new", Required: false, Command: `mix archive.install hex phx_new --force`},
	},
	schema.BundleJava: {
		{Name: "openjdk", Required: true, Command: `apt-get update -y && apt-get install -y openjdk-21-jdk-headless`},
		{Name: "maven", Required: false, Command: `apt-get install -y maven`},
		{Name: "gradle", Required: false, Command: `apt-get install -y gradle`},
	},
	schema.BundleZig: {
		{Name: "zig", Required: true, Command: `curl -fsSL https://ziglang.org/download/0.13.0/zig-linux-x86_64-0.13.0.tar.xz -o /tmp/zig.tar.xz && tar -C /usr/local -xJf /tmp/zig.tar.xz && ln -sf /usr/local/zig-linux-x86_64-0.13.0/zig /usr/local/bin/zig`},
	},
	schema.BundleCPP: {
		{Name: "build-essential", Required: true, Command: `apt-get update -y && apt-get install -y build-essential cmake ninja-build gdb`},
		{Name: "clang-tools", Required: false, Command: `apt-get install -y clang-tidy clangd`},
	},
	schema.BundleRuby: {
		{Name: "ruby", Required: true, Command: `apt-get update -y && apt-get install -y ruby-full`},
		{Name: "bundler", Required: false, Command: `gem install bundler`},
		{Name: "rubocop", Required: false, Command: `gem install rubocop`},
	},
}
