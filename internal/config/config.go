// Package config handles loading and validating Amri configuration.
//
// Configuration is a two-level structure: global defaults plus optional
// per-shell overrides. Resolve() collapses both levels into a single
// immutable ResolvedShellConfig per shell, which is what the validation
// and execution layers consume. The core never mutates a resolved config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// ShellKind tags the path dialect and invocation style of a shell.
type ShellKind string

const (
	// KindWindows covers native Windows shells (cmd.exe, powershell.exe).
	KindWindows ShellKind = "windows"
	// KindGitBash covers Git-Bash-style shells that accept both C:\ and /c/ paths.
	KindGitBash ShellKind = "gitbash"
	// KindWSL covers WSL shells whose paths live under a mount point (/mnt/c/...).
	KindWSL ShellKind = "wsl"
	// KindUnix covers plain Unix shells (/bin/bash, /bin/sh).
	KindUnix ShellKind = "unix"
)

// Valid reports whether k is one of the four known shell kinds.
func (k ShellKind) Valid() bool {
	switch k {
	case KindWindows, KindGitBash, KindWSL, KindUnix:
		return true
	}
	return false
}

// Config is the root configuration for Amri.
type Config struct {
	Security     SecurityConfig          `json:"security" yaml:"security"`
	Restrictions RestrictionsConfig      `json:"restrictions" yaml:"restrictions"`
	Paths        PathsConfig             `json:"paths" yaml:"paths"`
	Output       OutputConfig            `json:"output" yaml:"output"`
	History      HistoryConfig           `json:"history" yaml:"history"`
	Shells       map[string]*ShellConfig `json:"shells" yaml:"shells"`
	Audit        *AuditConfig            `json:"audit,omitempty" yaml:"audit,omitempty"` // nil = audit disabled
	Admin        *AdminConfig            `json:"admin,omitempty" yaml:"admin,omitempty"` // nil = admin API disabled
}

// SecurityConfig holds the global security limits. The two protection
// switches are pointers so an explicit "false" survives defaulting.
type SecurityConfig struct {
	MaxCommandLength          int   `json:"max_command_length" yaml:"max_command_length"`                   // Default: 2000.
	CommandTimeoutSeconds     int   `json:"command_timeout_seconds" yaml:"command_timeout_seconds"`         // Default: 30.
	EnableInjectionProtection *bool `json:"enable_injection_protection" yaml:"enable_injection_protection"` // Default: true.
	RestrictWorkingDirectory  *bool `json:"restrict_working_directory" yaml:"restrict_working_directory"`   // Default: true.
	MaxExecutionsPerMinute    int   `json:"max_executions_per_minute" yaml:"max_executions_per_minute"`     // Per shell. 0 = unlimited.
}

// InjectionProtection returns the effective injection-protection switch.
func (s SecurityConfig) InjectionProtection() bool {
	return s.EnableInjectionProtection == nil || *s.EnableInjectionProtection
}

// RestrictWorkingDir returns the effective working-directory restriction switch.
func (s SecurityConfig) RestrictWorkingDir() bool {
	return s.RestrictWorkingDirectory == nil || *s.RestrictWorkingDirectory
}

// RestrictionsConfig holds the global blocklists. Per-shell blocklists are
// merged on top (union), never replaced.
type RestrictionsConfig struct {
	BlockedCommands  []string `json:"blocked_commands" yaml:"blocked_commands"`
	BlockedArguments []string `json:"blocked_arguments" yaml:"blocked_arguments"`
	BlockedOperators []string `json:"blocked_operators" yaml:"blocked_operators"`
}

// PathsConfig holds the working-directory allow-list.
type PathsConfig struct {
	AllowedPaths []string `json:"allowed_paths" yaml:"allowed_paths"`
	InitialDir   string   `json:"initial_dir,omitempty" yaml:"initial_dir,omitempty"` // Default: first allowed path, else host cwd.
}

// OutputConfig controls response truncation.
type OutputConfig struct {
	MaxOutputLines   int   `json:"max_output_lines" yaml:"max_output_lines"`     // Default: 500.
	EnableTruncation *bool `json:"enable_truncation" yaml:"enable_truncation"`   // Default: true. Pointer so "false" survives defaulting.
	MaxRetrieveBytes int   `json:"max_retrieve_bytes" yaml:"max_retrieve_bytes"` // Byte budget cap for retrieval responses. Default: 100 KB.
}

// TruncationEnabled returns the effective truncation switch.
func (o OutputConfig) TruncationEnabled() bool {
	if o.EnableTruncation == nil {
		return true
	}
	return *o.EnableTruncation
}

// HistoryConfig controls the in-memory log store and the optional disk tier.
type HistoryConfig struct {
	MaxStoredLogs       int             `json:"max_stored_logs" yaml:"max_stored_logs"`               // Default: 100.
	MaxTotalStorageSize int64           `json:"max_total_storage_size" yaml:"max_total_storage_size"` // Bytes. Default: 50 MB.
	MaxEntrySize        int64           `json:"max_entry_size" yaml:"max_entry_size"`                 // Bytes. Default: 1 MB.
	RetentionHours      int             `json:"retention_hours" yaml:"retention_hours"`               // Default: 24.
	Disk                *DiskTierConfig `json:"disk,omitempty" yaml:"disk,omitempty"`                 // nil = disk tier disabled.
}

// DiskTierConfig controls the best-effort on-disk copy of log entries.
// Its limits are independent of the in-memory store's limits.
type DiskTierConfig struct {
	Enabled         bool   `json:"enabled" yaml:"enabled"`
	Dir             string `json:"dir" yaml:"dir"`                             // Default: ~/.amri/logs.
	MaxFiles        int    `json:"max_files" yaml:"max_files"`                 // Default: 200.
	MaxTotalSize    int64  `json:"max_total_size" yaml:"max_total_size"`       // Bytes. Default: 100 MB.
	MaxAgeHours     int    `json:"max_age_hours" yaml:"max_age_hours"`         // Default: 168 (7 days).
	SweepSchedule   string `json:"sweep_schedule" yaml:"sweep_schedule"`       // Cron spec. Default: "@every 5m".
	ExposeFilePaths bool   `json:"expose_file_paths" yaml:"expose_file_paths"` // Include file paths in truncation banners. Default: true.
}

// AuditConfig configures the execution audit trail.
type AuditConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Backend string `json:"backend" yaml:"backend"` // "jsonl" (default) or "sqlite".
	Path    string `json:"path" yaml:"path"`       // Default: ~/.amri/audit.jsonl or ~/.amri/audit.db.
}

// AdminConfig configures the read-only admin HTTP API.
type AdminConfig struct {
	Enabled    bool              `json:"enabled" yaml:"enabled"`
	ListenAddr string            `json:"listen_addr" yaml:"listen_addr"` // Default: ":8399".
	APIKeys    map[string]string `json:"api_keys" yaml:"api_keys"`       // API key -> label. Empty = no /v1 routes.
	EnableDocs bool              `json:"enable_docs" yaml:"enable_docs"`
}

// ShellConfig is the per-shell configuration and override block.
// Zero-valued override fields fall back to the global settings.
type ShellConfig struct {
	Enabled    bool      `json:"enabled" yaml:"enabled"`
	Kind       ShellKind `json:"kind" yaml:"kind"`
	Executable string    `json:"executable" yaml:"executable"`
	Args       []string  `json:"args" yaml:"args"`

	// Overrides. Zero/nil = inherit global.
	MaxCommandLength          int      `json:"max_command_length,omitempty" yaml:"max_command_length,omitempty"`
	CommandTimeoutSeconds     int      `json:"command_timeout_seconds,omitempty" yaml:"command_timeout_seconds,omitempty"`
	EnableInjectionProtection *bool    `json:"enable_injection_protection,omitempty" yaml:"enable_injection_protection,omitempty"`
	RestrictWorkingDirectory  *bool    `json:"restrict_working_directory,omitempty" yaml:"restrict_working_directory,omitempty"`
	MaxExecutionsPerMinute    int      `json:"max_executions_per_minute,omitempty" yaml:"max_executions_per_minute,omitempty"`
	BlockedCommands           []string `json:"blocked_commands,omitempty" yaml:"blocked_commands,omitempty"`
	BlockedArguments          []string `json:"blocked_arguments,omitempty" yaml:"blocked_arguments,omitempty"`
	BlockedOperators          []string `json:"blocked_operators,omitempty" yaml:"blocked_operators,omitempty"`
	AllowedPaths              []string `json:"allowed_paths,omitempty" yaml:"allowed_paths,omitempty"`
	MaxOutputLines            int      `json:"max_output_lines,omitempty" yaml:"max_output_lines,omitempty"`

	// WSL-specific settings. Ignored for other kinds.
	WSLMountPoint      string `json:"wsl_mount_point,omitempty" yaml:"wsl_mount_point,omitempty"`             // Default: "/mnt/".
	InheritGlobalPaths *bool  `json:"inherit_global_paths,omitempty" yaml:"inherit_global_paths,omitempty"`   // Default: true.
}

// ResolvedShellConfig is the collapsed, immutable view of one shell's
// effective policy: global settings merged with the shell's overrides.
// It is computed once per process start and passed into the core by value
// semantics; the core never mutates it.
type ResolvedShellConfig struct {
	Name       string
	Kind       ShellKind
	Executable string
	Args       []string

	MaxCommandLength          int
	TimeoutSeconds            int
	EnableInjectionProtection bool
	RestrictWorkingDirectory  bool
	MaxExecutionsPerMinute    int

	BlockedCommands  []string
	BlockedArguments []string
	BlockedOperators []string
	AllowedPaths     []string

	MaxOutputLines    int
	TruncationEnabled bool

	WSLMountPoint string
}

// DefaultConfigPath returns the default config file location (~/.amri/config.yaml).
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".amri", "config.yaml")
}

// Default returns a configuration with all defaults applied and the
// platform-appropriate shells enabled.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file, applies defaults, and validates the result.
// A missing file is not an error: the defaults are returned so the gateway
// is usable out of the box.
func Load(path string) (*Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", resolved, err)
	}
	return &cfg, nil
}

// defaultBlockedCommands is the out-of-the-box command blocklist. It targets
// system-destructive and privilege-manipulating commands across all four
// shell dialects.
func defaultBlockedCommands() []string {
	return []string{
		"format", "shutdown", "restart", "reboot",
		"reg", "regedit", "net", "netsh",
		"takeown", "icacls", "diskpart",
		"rm", "del", "rmdir", "mkfs", "dd",
	}
}

func defaultBlockedArguments() []string {
	return []string{
		"--exec", "-e", "/c", "-enc", "-encodedcommand",
		"-command", "--interactive", "-i", "--login", "--system",
	}
}

func defaultBlockedOperators() []string {
	// "&&" stays permitted as the one supported chaining operator;
	// single "&" is caught by the operator scan.
	return []string{"&", "|", ";", "`"}
}

func (c *Config) applyDefaults() {
	if c.Security.MaxCommandLength == 0 {
		c.Security.MaxCommandLength = 2000
	}
	if c.Security.CommandTimeoutSeconds == 0 {
		c.Security.CommandTimeoutSeconds = 30
	}

	if c.Restrictions.BlockedCommands == nil {
		c.Restrictions.BlockedCommands = defaultBlockedCommands()
	}
	if c.Restrictions.BlockedArguments == nil {
		c.Restrictions.BlockedArguments = defaultBlockedArguments()
	}
	if c.Restrictions.BlockedOperators == nil {
		c.Restrictions.BlockedOperators = defaultBlockedOperators()
	}

	if len(c.Paths.AllowedPaths) == 0 {
		c.Paths.AllowedPaths = defaultAllowedPaths()
	}

	if c.Output.MaxOutputLines == 0 {
		c.Output.MaxOutputLines = 500
	}
	if c.Output.MaxRetrieveBytes == 0 {
		c.Output.MaxRetrieveBytes = 100 * 1024
	}

	if c.History.MaxStoredLogs == 0 {
		c.History.MaxStoredLogs = 100
	}
	if c.History.MaxTotalStorageSize == 0 {
		c.History.MaxTotalStorageSize = 50 * 1024 * 1024
	}
	if c.History.MaxEntrySize == 0 {
		c.History.MaxEntrySize = 1 * 1024 * 1024
	}
	if c.History.RetentionHours == 0 {
		c.History.RetentionHours = 24
	}
	if d := c.History.Disk; d != nil {
		if d.Dir == "" {
			d.Dir = defaultDataPath("logs")
		}
		if d.MaxFiles == 0 {
			d.MaxFiles = 200
		}
		if d.MaxTotalSize == 0 {
			d.MaxTotalSize = 100 * 1024 * 1024
		}
		if d.MaxAgeHours == 0 {
			d.MaxAgeHours = 7 * 24
		}
		if d.SweepSchedule == "" {
			d.SweepSchedule = "@every 5m"
		}
	}

	if a := c.Audit; a != nil {
		if a.Backend == "" {
			a.Backend = "jsonl"
		}
		if a.Path == "" {
			switch a.Backend {
			case "sqlite":
				a.Path = defaultDataPath("audit.db")
			default:
				a.Path = defaultDataPath("audit.jsonl")
			}
		}
	}

	if ad := c.Admin; ad != nil && ad.ListenAddr == "" {
		ad.ListenAddr = ":8399"
	}

	if c.Shells == nil {
		c.Shells = defaultShells()
	}
	for name, sh := range c.Shells {
		if sh.Kind == "" {
			sh.Kind = defaultKindFor(name)
		}
		if sh.Kind == KindWSL && sh.WSLMountPoint == "" {
			sh.WSLMountPoint = "/mnt/"
		}
	}
}

// Validate checks cross-field consistency after defaulting.
func (c *Config) Validate() error {
	for name, sh := range c.Shells {
		if !sh.Enabled {
			continue
		}
		if !sh.Kind.Valid() {
			return fmt.Errorf("shell %q: unknown kind %q", name, sh.Kind)
		}
		if sh.Executable == "" {
			return fmt.Errorf("shell %q: executable is required", name)
		}
	}
	if c.Audit != nil && c.Audit.Enabled {
		switch c.Audit.Backend {
		case "jsonl", "sqlite":
		default:
			return fmt.Errorf("audit: unknown backend %q (want jsonl or sqlite)", c.Audit.Backend)
		}
	}
	return nil
}

// EnabledShells returns the names of all enabled shells, sorted order not
// guaranteed.
func (c *Config) EnabledShells() []string {
	var names []string
	for name, sh := range c.Shells {
		if sh.Enabled {
			names = append(names, name)
		}
	}
	return names
}

// Resolve merges the global settings with the named shell's overrides into
// one immutable ResolvedShellConfig. Returns an error for unknown or
// disabled shells.
func (c *Config) Resolve(shellName string) (*ResolvedShellConfig, error) {
	sh, ok := c.Shells[shellName]
	if !ok {
		return nil, fmt.Errorf("unknown shell %q (enabled: %s)", shellName, strings.Join(c.EnabledShells(), ", "))
	}
	if !sh.Enabled {
		return nil, fmt.Errorf("shell %q is disabled", shellName)
	}

	r := &ResolvedShellConfig{
		Name:       shellName,
		Kind:       sh.Kind,
		Executable: sh.Executable,
		Args:       append([]string(nil), sh.Args...),

		MaxCommandLength:          c.Security.MaxCommandLength,
		TimeoutSeconds:            c.Security.CommandTimeoutSeconds,
		EnableInjectionProtection: c.Security.InjectionProtection(),
		RestrictWorkingDirectory:  c.Security.RestrictWorkingDir(),
		MaxExecutionsPerMinute:    c.Security.MaxExecutionsPerMinute,

		MaxOutputLines:    c.Output.MaxOutputLines,
		TruncationEnabled: c.Output.TruncationEnabled(),

		WSLMountPoint: sh.WSLMountPoint,
	}

	if sh.MaxCommandLength > 0 {
		r.MaxCommandLength = sh.MaxCommandLength
	}
	if sh.CommandTimeoutSeconds > 0 {
		r.TimeoutSeconds = sh.CommandTimeoutSeconds
	}
	if sh.EnableInjectionProtection != nil {
		r.EnableInjectionProtection = *sh.EnableInjectionProtection
	}
	if sh.RestrictWorkingDirectory != nil {
		r.RestrictWorkingDirectory = *sh.RestrictWorkingDirectory
	}
	if sh.MaxOutputLines > 0 {
		r.MaxOutputLines = sh.MaxOutputLines
	}
	if sh.MaxExecutionsPerMinute > 0 {
		r.MaxExecutionsPerMinute = sh.MaxExecutionsPerMinute
	}

	// Blocklists are unions: a shell can only tighten the global policy,
	// never loosen it.
	r.BlockedCommands = mergeUnique(c.Restrictions.BlockedCommands, sh.BlockedCommands)
	r.BlockedArguments = mergeUnique(c.Restrictions.BlockedArguments, sh.BlockedArguments)
	r.BlockedOperators = mergeUnique(c.Restrictions.BlockedOperators, sh.BlockedOperators)

	// Allowed paths: shell-specific entries extend the global list unless
	// inheritance is turned off.
	inherit := true
	if sh.InheritGlobalPaths != nil {
		inherit = *sh.InheritGlobalPaths
	}
	if inherit {
		r.AllowedPaths = mergeUnique(c.Paths.AllowedPaths, sh.AllowedPaths)
	} else {
		r.AllowedPaths = append([]string(nil), sh.AllowedPaths...)
	}

	return r, nil
}

// InitialWorkingDir returns the directory a session starts in: the
// configured initial_dir, else the first allowed path, else the host cwd.
func (c *Config) InitialWorkingDir() string {
	if c.Paths.InitialDir != "" {
		return c.Paths.InitialDir
	}
	if len(c.Paths.AllowedPaths) > 0 {
		return c.Paths.AllowedPaths[0]
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

func defaultShells() map[string]*ShellConfig {
	shells := map[string]*ShellConfig{
		"cmd": {
			Kind:       KindWindows,
			Executable: "cmd.exe",
			Args:       []string{"/c"},
		},
		"powershell": {
			Kind:       KindWindows,
			Executable: "powershell.exe",
			Args:       []string{"-NoProfile", "-NonInteractive", "-Command"},
		},
		"gitbash": {
			Kind:       KindGitBash,
			Executable: `C:\Program Files\Git\bin\bash.exe`,
			Args:       []string{"-c"},
		},
		"wsl": {
			Kind:          KindWSL,
			Executable:    "wsl.exe",
			Args:          []string{"-e"},
			WSLMountPoint: "/mnt/",
		},
		// The exec "$@" wrapper makes bash run the validated tokens as
		// positional parameters instead of reparsing a command string,
		// so quoting tricks cannot smuggle anything past validation.
		"bash": {
			Kind:       KindUnix,
			Executable: "/bin/bash",
			Args:       []string{"-c", `exec "$@"`, "_"},
		},
	}

	// Enable what the host can actually run.
	if runtime.GOOS == "windows" {
		shells["cmd"].Enabled = true
		shells["powershell"].Enabled = true
		shells["gitbash"].Enabled = true
		shells["wsl"].Enabled = true
	} else {
		shells["bash"].Enabled = true
	}
	return shells
}

func defaultKindFor(name string) ShellKind {
	switch name {
	case "cmd", "powershell", "pwsh":
		return KindWindows
	case "gitbash":
		return KindGitBash
	case "wsl":
		return KindWSL
	default:
		return KindUnix
	}
}

// defaultAllowedPaths restricts execution to the user's home directory and
// the process working directory until the operator configures otherwise.
func defaultAllowedPaths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, home)
	}
	if cwd, err := os.Getwd(); err == nil && cwd != "" {
		paths = append(paths, cwd)
	}
	return paths
}

func defaultDataPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".amri", name)
}

// resolvePath expands a leading ~ to the user's home directory.
func resolvePath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding ~: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}

func mergeUnique(base, extra []string) []string {
	out := append([]string(nil), base...)
	seen := make(map[string]struct{}, len(base))
	for _, b := range base {
		seen[strings.ToLower(b)] = struct{}{}
	}
	for _, e := range extra {
		if _, dup := seen[strings.ToLower(e)]; dup {
			continue
		}
		seen[strings.ToLower(e)] = struct{}{}
		out = append(out, e)
	}
	return out
}
