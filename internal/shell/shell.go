// Package shell models the four supported shell dialects and everything
// that depends on which dialect a command targets: path translation,
// working-directory normalization, and invocation argument construction.
//
// The dialect set is closed: native Windows shells (cmd, powershell),
// Git-Bash-style shells, WSL shells, and plain Unix shells. A Context is
// built fresh per request from the shell's resolved config and is the
// single place the rest of the gateway asks dialect questions.
package shell

import (
	"github.com/jkaninda/amri/internal/config"
)

// Context carries the per-request view of one shell: its name, resolved
// config, and dialect predicates. Derived, never stored.
type Context struct {
	Name   string
	Config *config.ResolvedShellConfig
}

// NewContext builds a validation context for one request.
func NewContext(cfg *config.ResolvedShellConfig) *Context {
	return &Context{Name: cfg.Name, Config: cfg}
}

// IsWindowsShell reports whether the shell is a native Windows shell.
func (c *Context) IsWindowsShell() bool { return c.Config.Kind == config.KindWindows }

// IsWSLShell reports whether the shell is WSL-style.
func (c *Context) IsWSLShell() bool { return c.Config.Kind == config.KindWSL }

// IsUnixShell reports whether the shell consumes Unix-style paths
// (Git-Bash, WSL, and plain Unix shells all qualify).
func (c *Context) IsUnixShell() bool {
	switch c.Config.Kind {
	case config.KindGitBash, config.KindWSL, config.KindUnix:
		return true
	}
	return false
}

// MountPoint returns the WSL mount prefix ("/mnt/" by default) for
// WSL-style shells, and "" for everything else.
func (c *Context) MountPoint() string {
	if c.Config.Kind != config.KindWSL {
		return ""
	}
	if c.Config.WSLMountPoint == "" {
		return "/mnt/"
	}
	return c.Config.WSLMountPoint
}
