package bootstrap

import (
	"regexp"
	"strings"
)

// varPattern matches $NAME, ${NAME}, and ${NAME:-DEFAULT}, plus the
// literal-dollar escape $$. Group 1 is the braced form's name, group 2 its
// default; group 3 is the bare $NAME form's name.
var varPattern = regexp.MustCompile(`\$\$|\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// ResolveEnv substitutes $NAME / ${NAME} / ${NAME:-DEFAULT} occurrences in
// value against lookup, the controller's environment. An unset name
// without a default resolves to the empty string; $$ resolves to a literal
// $. This runs entirely on the controller, before a ProjectSpec's env map
// is embedded in the first-boot document.
func ResolveEnv(value string, lookup func(name string) (string, bool)) string {
	return varPattern.ReplaceAllStringFunc(value, func(match string) string {
		if match == "$$" {
			return "$"
		}
		groups := varPattern.FindStringSubmatch(match)
		name := groups[1]
		hasDefault := strings.Contains(match, ":-")
		def := groups[2]
		if name == "" {
			name = groups[3]
		}

		if v, ok := lookup(name); ok {
			return v
		}
		if hasDefault {
			return def
		}
		return ""
	})
}

// ResolveEnvMap applies ResolveEnv to every value in m, returning a new map.
func ResolveEnvMap(m map[string]string, lookup func(name string) (string, bool)) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = ResolveEnv(v, lookup)
	}
	return out
}
