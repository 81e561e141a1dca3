package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Security.MaxCommandLength != 2000 {
		t.Errorf("MaxCommandLength = %d", cfg.Security.MaxCommandLength)
	}
	if cfg.Security.CommandTimeoutSeconds != 30 {
		t.Errorf("CommandTimeoutSeconds = %d", cfg.Security.CommandTimeoutSeconds)
	}
	if !cfg.Security.InjectionProtection() {
		t.Error("injection protection off by default")
	}
	if !cfg.Security.RestrictWorkingDir() {
		t.Error("working-directory restriction off by default")
	}
	if cfg.Output.MaxOutputLines != 500 {
		t.Errorf("MaxOutputLines = %d", cfg.Output.MaxOutputLines)
	}
	if cfg.History.MaxStoredLogs != 100 {
		t.Errorf("MaxStoredLogs = %d", cfg.History.MaxStoredLogs)
	}
	if len(cfg.Restrictions.BlockedCommands) == 0 {
		t.Error("empty default command blocklist")
	}

	// Exactly the host-appropriate shells are enabled.
	enabled := cfg.EnabledShells()
	if runtime.GOOS == "windows" {
		if len(enabled) != 4 {
			t.Errorf("enabled shells on windows = %v", enabled)
		}
	} else {
		if len(enabled) != 1 || enabled[0] != "bash" {
			t.Errorf("enabled shells = %v, want [bash]", enabled)
		}
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load missing file: %v", err)
	}
	if cfg.Security.MaxCommandLength != 2000 {
		t.Error("defaults not applied for missing file")
	}
}

func TestLoadOverridesAndExplicitFalse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
security:
  max_command_length: 500
  enable_injection_protection: false
paths:
  allowed_paths: ["/srv/data"]
  initial_dir: /srv/data
shells:
  bash:
    enabled: true
    kind: unix
    executable: /bin/bash
    args: ["-c", "exec \"$@\"", "_"]
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Security.MaxCommandLength != 500 {
		t.Errorf("MaxCommandLength = %d, want 500", cfg.Security.MaxCommandLength)
	}
	// Explicit false must survive defaulting, not be flipped back to true.
	if cfg.Security.InjectionProtection() {
		t.Error("explicit enable_injection_protection: false was lost")
	}
	// Unset switch still defaults on.
	if !cfg.Security.RestrictWorkingDir() {
		t.Error("unset restrict_working_directory should default to true")
	}
	if cfg.InitialWorkingDir() != "/srv/data" {
		t.Errorf("InitialWorkingDir = %q", cfg.InitialWorkingDir())
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		body string
	}{
		{"enabled shell without executable", `
shells:
  broken:
    enabled: true
    kind: unix
`},
		{"unknown shell kind", `
shells:
  odd:
    enabled: true
    kind: plan9
    executable: /bin/rc
`},
		{"unknown audit backend", `
audit:
  enabled: true
  backend: mongodb
`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name+".yaml")
			if err := os.WriteFile(path, []byte(tc.body), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestResolve(t *testing.T) {
	cfg := Default()
	cfg.Paths.AllowedPaths = []string{"/srv/data"}
	cfg.Security.MaxExecutionsPerMinute = 30
	cfg.Shells = map[string]*ShellConfig{
		"bash": {
			Enabled:    true,
			Kind:       KindUnix,
			Executable: "/bin/bash",
			Args:       []string{"-c", `exec "$@"`, "_"},

			CommandTimeoutSeconds:  120,
			MaxExecutionsPerMinute: 5,
			BlockedCommands:        []string{"custom-tool", "rm"}, // "rm" already global
			AllowedPaths:           []string{"/opt/extra"},
		},
	}

	r, err := cfg.Resolve("bash")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.TimeoutSeconds != 120 {
		t.Errorf("TimeoutSeconds = %d, want shell override 120", r.TimeoutSeconds)
	}
	if r.MaxCommandLength != 2000 {
		t.Errorf("MaxCommandLength = %d, want global 2000", r.MaxCommandLength)
	}
	if r.MaxExecutionsPerMinute != 5 {
		t.Errorf("MaxExecutionsPerMinute = %d, want shell override 5", r.MaxExecutionsPerMinute)
	}

	// Blocklist union, de-duplicated.
	seen := map[string]int{}
	for _, b := range r.BlockedCommands {
		seen[b]++
	}
	if seen["custom-tool"] != 1 {
		t.Error("shell blocklist entry missing")
	}
	if seen["rm"] != 1 {
		t.Errorf("duplicate blocklist entry: rm appears %d times", seen["rm"])
	}

	// Shell paths extend the global allow-list by default.
	wantPaths := map[string]bool{"/srv/data": true, "/opt/extra": true}
	for _, p := range r.AllowedPaths {
		delete(wantPaths, p)
	}
	if len(wantPaths) != 0 {
		t.Errorf("AllowedPaths = %v missing %v", r.AllowedPaths, wantPaths)
	}
}

func TestResolveNoPathInheritance(t *testing.T) {
	off := false
	cfg := Default()
	cfg.Paths.AllowedPaths = []string{"/srv/data"}
	cfg.Shells = map[string]*ShellConfig{
		"jail": {
			Enabled:            true,
			Kind:               KindUnix,
			Executable:         "/bin/sh",
			AllowedPaths:       []string{"/jail"},
			InheritGlobalPaths: &off,
		},
	}

	r, err := cfg.Resolve("jail")
	if err != nil {
		t.Fatal(err)
	}
	if len(r.AllowedPaths) != 1 || r.AllowedPaths[0] != "/jail" {
		t.Errorf("AllowedPaths = %v, want [/jail]", r.AllowedPaths)
	}
}

func TestResolveUnknownAndDisabled(t *testing.T) {
	cfg := Default()
	cfg.Shells["off"] = &ShellConfig{Enabled: false, Kind: KindUnix, Executable: "/bin/sh"}

	if _, err := cfg.Resolve("nope"); err == nil {
		t.Error("unknown shell resolved")
	}
	if _, err := cfg.Resolve("off"); err == nil {
		t.Error("disabled shell resolved")
	}
}

func TestShellOverridesInjectionSwitch(t *testing.T) {
	off := false
	cfg := Default()
	cfg.Shells = map[string]*ShellConfig{
		"loose": {
			Enabled:                   true,
			Kind:                      KindUnix,
			Executable:                "/bin/sh",
			EnableInjectionProtection: &off,
		},
	}

	r, err := cfg.Resolve("loose")
	if err != nil {
		t.Fatal(err)
	}
	if r.EnableInjectionProtection {
		t.Error("per-shell injection override ignored")
	}
}
