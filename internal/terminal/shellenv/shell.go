package shellenv

import (
	"path/filepath"
	"runtime"
	"strings"
)

// Kind is a known shell family.
type Kind int

const (
	KindUnknown Kind = iota
	KindZsh
	KindBash
	KindFish
	KindSh
)

// String returns the shell family name
func (k Kind) String() string {
	switch k {
	case KindZsh:
		return "zsh"
	case KindBash:
		return "bash"
	case KindFish:
		return "fish"
	case KindSh:
		return "sh"
	default:
		return "unknown"
	}
}

// DetectKind classifies a shell by the base name of its path.
func DetectKind(shellPath string) Kind {
	name := filepath.Base(strings.TrimSpace(shellPath))
	switch name {
	case "zsh":
		return KindZsh
	case "bash":
		return KindBash
	case "fish":
		return KindFish
	case "sh", "dash", "ash":
		return KindSh
	default:
		return KindUnknown
	}
}

// LoginArgs returns the arguments for an interactive login shell.
func (k Kind) LoginArgs() []string {
	return []string{"-l"}
}

// CommandArgs returns the arguments that run a single command string.
// Login-capable shells load the user's profile first; plain sh does not.
func (k Kind) CommandArgs(command string) []string {
	switch k {
	case KindZsh, KindBash, KindFish:
		return []string{"-l", "-c", command}
	default:
		return []string{"-c", command}
	}
}

// DefaultShell resolves the shell to spawn: the explicit override, then
// $SHELL from env, then the platform default.
func DefaultShell(override string, env map[string]string) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}
	if s := strings.TrimSpace(env["SHELL"]); s != "" {
		return s
	}
	if runtime.GOOS == "darwin" {
		return "/bin/zsh"
	}
	return "/bin/sh"
}
