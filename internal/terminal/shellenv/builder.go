package shellenv

import (
	"sort"
	"strings"
)

// Pinned values applied on top of the inherited environment.
const (
	TermValue   = "xterm-256color"
	LangValue   = "en_US.UTF-8"
	PromptValue = " "
)

// systemPath is appended after the per-user bin directory.
var systemPath = []string{
	"/usr/local/bin",
	"/opt/homebrew/bin",
	"/usr/bin",
	"/bin",
	"/usr/sbin",
	"/sbin",
}

// SearchPath returns the fixed PATH used by every session.
func SearchPath(home string) string {
	parts := make([]string, 0, len(systemPath)+1)
	parts = append(parts, strings.TrimRight(home, "/")+"/.local/bin")
	parts = append(parts, systemPath...)
	return strings.Join(parts, ":")
}

// Build returns the environment for a child shell. base is never modified.
func Build(base map[string]string, home string) map[string]string {
	env := make(map[string]string, len(base)+5)
	for k, v := range base {
		env[k] = v
	}

	env["TERM"] = TermValue
	env["LANG"] = LangValue
	env["HOME"] = home
	env["PATH"] = SearchPath(home)
	env["PS1"] = PromptValue

	return env
}

// FromList parses KEY=VALUE pairs as returned by os.Environ.
// Later duplicates win; entries without '=' are ignored.
func FromList(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

// ToList renders env as KEY=VALUE pairs sorted by key.
func ToList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, k+"="+env[k])
	}
	return list
}
