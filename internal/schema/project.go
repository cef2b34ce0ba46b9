package schema

import "gopkg.in/yaml.v3"

// Bundle is one of the closed set of named language-ecosystem installs.
type Bundle string

const (
	BundleRust   Bundle = "rust"
	BundleGo     Bundle = "go"
	BundlePython Bundle = "python"
	BundleNode   Bundle = "node"
	BundleElixir Bundle = "elixir"
	BundleJava   Bundle = "java"
	BundleZig    Bundle = "zig"
	BundleCPP    Bundle = "cpp"
	BundleRuby   Bundle = "ruby"
)

// ValidBundles is the closed set of tokens ProjectSpec.Bundles accepts.
var ValidBundles = map[Bundle]bool{
	BundleRust: true, BundleGo: true, BundlePython: true, BundleNode: true,
	BundleElixir: true, BundleJava: true, BundleZig: true, BundleCPP: true,
	BundleRuby: true,
}

// Resources carries project-level size/region overrides. Weaker than CLI
// flags, stronger than global config.
type Resources struct {
	Size   string `json:"size,omitempty" yaml:"size,omitempty"`
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
}

// Services describes an optional docker-compose workload to start on the VM.
type Services struct {
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	ComposeFile string   `json:"compose_file,omitempty" yaml:"compose_file,omitempty"`
	Profiles    []string `json:"profiles,omitempty" yaml:"profiles,omitempty"`
}

// Repository is one clone target. Either Owner/Repo short form (expanded by
// (*Repository).Resolve) or the full form with URL set directly.
type Repository struct {
	Short  string `json:"short,omitempty" yaml:"short,omitempty"` // "owner/repo"
	URL    string `json:"url,omitempty" yaml:"url,omitempty"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Branch string `json:"branch,omitempty" yaml:"branch,omitempty"`
}

// Volume is one bidirectional SSHFS mount request.
type Volume struct {
	Source     string `json:"source" yaml:"source"`
	Target     string `json:"target" yaml:"target"`
	MountPoint string `json:"mount_point,omitempty" yaml:"mount_point,omitempty"`
}

// Hooks are shell snippets run at fixed points in the instance lifecycle.
type Hooks struct {
	PostUp  string `json:"post_up,omitempty" yaml:"post_up,omitempty"`
	PreDown string `json:"pre_down,omitempty" yaml:"pre_down,omitempty"`
}

// ProjectSpec is the declarative description of a dev environment. It is
// serialized to compact JSON and embedded at /opt/spuff/project.json by the
// first-boot document builder; the agent reads it back unchanged.
type ProjectSpec struct {
	Name         string            `json:"name" yaml:"name"`
	Resources    *Resources        `json:"resources,omitempty" yaml:"resources,omitempty"`
	Bundles      []Bundle          `json:"bundles,omitempty" yaml:"bundles,omitempty"`
	Packages     []string          `json:"packages,omitempty" yaml:"packages,omitempty"`
	Services     *Services         `json:"services,omitempty" yaml:"services,omitempty"`
	Repositories []Repository      `json:"repositories,omitempty" yaml:"repositories,omitempty"`
	Env          map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Setup        []string          `json:"setup,omitempty" yaml:"setup,omitempty"`
	Ports        []int             `json:"ports,omitempty" yaml:"ports,omitempty"`
	Volumes      []Volume          `json:"volumes,omitempty" yaml:"volumes,omitempty"`
	Hooks        *Hooks            `json:"hooks,omitempty" yaml:"hooks,omitempty"`

	// AITools is the set of AI CLIs the asynchronous bootstrap should
	// install, driving both `up --ai-tools` and the `ai` command group.
	AITools []string `json:"ai_tools,omitempty" yaml:"ai_tools,omitempty"`
}

// UnmarshalYAML accepts both forms a project file may use for a repository
// entry: a bare "owner/repo" scalar, or a mapping with url/path/branch keys.
func (r *Repository) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var short string
		if err := value.Decode(&short); err != nil {
			return err
		}
		*r = Repository{Short: short}
		return nil
	}
	type plain Repository
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*r = Repository(p)
	return nil
}

// Resolve expands an owner/repo short form into its default clone URL and
// path. Full-form repositories (URL already set) pass through unchanged.
func (r Repository) Resolve() (url, path string) {
	if r.URL != "" {
		url = r.URL
	} else if r.Short != "" {
		url = "https://github.com/" + r.Short + ".git"
	}
	if r.Path != "" {
		return url, r.Path
	}
	name := r.Short
	if name == "" {
		name = repoNameFromURL(url)
	} else if idx := lastSlash(name); idx >= 0 {
		name = name[idx+1:]
	}
	return url, "~/projects/" + name
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

func repoNameFromURL(url string) string {
	name := url
	if idx := lastSlash(name); idx >= 0 {
		name = name[idx+1:]
	}
	for _, suffix := range []string{".git"} {
		if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			name = name[:len(name)-len(suffix)]
		}
	}
	return name
}
