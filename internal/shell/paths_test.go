package shell

import (
	"strings"
	"testing"

	"github.com/jkaninda/amri/internal/config"
)

func ctxOf(kind config.ShellKind, allowed []string) *Context {
	return NewContext(&config.ResolvedShellConfig{
		Name:                     "test",
		Kind:                     kind,
		RestrictWorkingDirectory: true,
		AllowedPaths:             allowed,
	})
}

func TestIsWindowsPath(t *testing.T) {
	tests := []struct {
		p    string
		want bool
	}{
		{`C:\Users`, true},
		{`c:/users`, true},
		{`D:`, true},
		{`/c/users`, false},
		{`/mnt/c/users`, false},
		{`relative\path`, false},
		{``, false},
		{`1:\x`, false},
	}
	for _, tc := range tests {
		if got := IsWindowsPath(tc.p); got != tc.want {
			t.Errorf("IsWindowsPath(%q) = %v, want %v", tc.p, got, tc.want)
		}
	}
}

func TestNormalizeWindowsPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`c:/users/dev/`, `C:\users\dev`},
		{`C:\Users\Dev`, `C:\Users\Dev`},
		{`c:`, `C:\`},
		{`/not/windows`, `/not/windows`},
	}
	for _, tc := range tests {
		if got := NormalizeWindowsPath(tc.in); got != tc.want {
			t.Errorf("NormalizeWindowsPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWindowsWSLRoundTrip(t *testing.T) {
	wsl := WindowsToWSLPath(`C:\Users\dev\project`, "/mnt/")
	if wsl != "/mnt/c/Users/dev/project" {
		t.Fatalf("WindowsToWSLPath = %q", wsl)
	}

	win, ok := WSLToWindowsPath(wsl, "/mnt/")
	if !ok || win != `C:\Users\dev\project` {
		t.Errorf("WSLToWindowsPath = (%q, %v)", win, ok)
	}

	// Pure-Unix paths have no Windows equivalent.
	if _, ok := WSLToWindowsPath("/tmp/work", "/mnt/"); ok {
		t.Error("WSLToWindowsPath(/tmp/work) should not translate")
	}

	// Custom mount point.
	got := WindowsToWSLPath(`D:\data`, "/wsl/")
	if got != "/wsl/d/data" {
		t.Errorf("custom mount = %q, want /wsl/d/data", got)
	}
}

func TestGitBashTranslation(t *testing.T) {
	win, ok := GitBashToWindowsPath("/c/Users/dev")
	if !ok || win != `C:\Users\dev` {
		t.Errorf("GitBashToWindowsPath = (%q, %v)", win, ok)
	}

	if _, ok := GitBashToWindowsPath("/home/dev"); ok {
		t.Error("/home/dev is not a drive-mapped path")
	}

	if got := WindowsToGitBashPath(`C:\Users\dev`); got != "/c/Users/dev" {
		t.Errorf("WindowsToGitBashPath = %q", got)
	}
}

func TestResolvePath(t *testing.T) {
	unix := ctxOf(config.KindUnix, nil)
	win := ctxOf(config.KindWindows, nil)

	tests := []struct {
		name   string
		ctx    *Context
		cursor string
		target string
		want   string
	}{
		{"absolute replaces cursor", unix, "/srv/data", "/tmp", "/tmp"},
		{"relative joins", unix, "/srv/data", "project", "/srv/data/project"},
		{"dotdot walks up", unix, "/srv/data/project", "../..", "/srv"},
		{"windows absolute", win, `C:\Projects`, `D:\Other`, `D:\Other`},
		{"windows relative keeps spelling", win, `C:\Projects`, "app", `C:\Projects\app`},
		{"windows dotdot", win, `C:\Projects\app`, "..", `C:\Projects`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.ctx.ResolvePath(tc.cursor, tc.target); got != tc.want {
				t.Errorf("ResolvePath(%q, %q) = %q, want %q", tc.cursor, tc.target, got, tc.want)
			}
		})
	}
}

func TestValidateWorkingDir(t *testing.T) {
	tests := []struct {
		name    string
		ctx     *Context
		dir     string
		wantErr bool
	}{
		{"unix inside", ctxOf(config.KindUnix, []string{"/srv/data"}), "/srv/data/sub", false},
		{"unix exact", ctxOf(config.KindUnix, []string{"/srv/data"}), "/srv/data", false},
		{"unix outside", ctxOf(config.KindUnix, []string{"/srv/data"}), "/etc", true},
		{"unix sibling prefix", ctxOf(config.KindUnix, []string{"/srv/data"}), "/srv/database", true},
		{"windows case-insensitive", ctxOf(config.KindWindows, []string{`C:\Projects`}), `c:\projects\APP`, false},
		{"wsl mount form against windows entry", ctxOf(config.KindWSL, []string{`C:\Projects`}), "/mnt/c/Projects/app", false},
		{"wsl windows form against mount entry", ctxOf(config.KindWSL, []string{"/mnt/c/Projects"}), `C:\Projects\app`, false},
		{"gitbash both spellings", ctxOf(config.KindGitBash, []string{`C:\Users\dev`}), "/c/Users/dev/repo", false},
		{"gitbash outside", ctxOf(config.KindGitBash, []string{`C:\Users\dev`}), "/d/other", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.ctx.ValidateWorkingDir(tc.dir)
			if tc.wantErr && err == nil {
				t.Errorf("ValidateWorkingDir(%q) = nil, want error", tc.dir)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("ValidateWorkingDir(%q) = %v, want nil", tc.dir, err)
			}
		})
	}
}

func TestValidateWorkingDirEmptyAllowList(t *testing.T) {
	ctx := ctxOf(config.KindUnix, nil)

	// Restriction with nothing allowed fails closed.
	err := ctx.ValidateWorkingDir("/anything")
	if err == nil {
		t.Fatal("empty allow-list under restriction must deny")
	}
	if !strings.Contains(err.Error(), "empty") {
		t.Errorf("error should name the empty allow-list, got: %v", err)
	}

	// With restriction off everything passes.
	ctx.Config.RestrictWorkingDirectory = false
	if err := ctx.ValidateWorkingDir("/anything"); err != nil {
		t.Errorf("unrestricted dir rejected: %v", err)
	}
}
