package shell

import (
	"reflect"
	"testing"

	"github.com/jkaninda/amri/internal/config"
)

func TestBuildSpawnSpecUnix(t *testing.T) {
	ctx := NewContext(&config.ResolvedShellConfig{
		Name:       "bash",
		Kind:       config.KindUnix,
		Executable: "/bin/bash",
		Args:       []string{"-c", `exec "$@"`, "_"},
	})

	spec := ctx.BuildSpawnSpec(`echo "hello world"`, []string{"echo", "hello world"}, "/srv/data")
	if spec.Executable != "/bin/bash" {
		t.Errorf("Executable = %q", spec.Executable)
	}
	// Validated tokens ride as discrete positional parameters, never a
	// reparsed command string.
	want := []string{"-c", `exec "$@"`, "_", "echo", "hello world"}
	if !reflect.DeepEqual(spec.Args, want) {
		t.Errorf("Args = %q, want %q", spec.Args, want)
	}
	if spec.Dir != "/srv/data" {
		t.Errorf("Dir = %q, want /srv/data", spec.Dir)
	}
}

func TestBuildSpawnSpecWindows(t *testing.T) {
	ctx := NewContext(&config.ResolvedShellConfig{
		Name:       "cmd",
		Kind:       config.KindWindows,
		Executable: "cmd.exe",
		Args:       []string{"/c"},
	})

	spec := ctx.BuildSpawnSpec("dir /w", []string{"dir", "/w"}, `C:\Projects`)
	want := []string{"/c", "dir /w"}
	if !reflect.DeepEqual(spec.Args, want) {
		t.Errorf("Args = %q, want %q", spec.Args, want)
	}
	if spec.Dir != `C:\Projects` {
		t.Errorf("Dir = %q", spec.Dir)
	}
}

func TestSpawnDirWSL(t *testing.T) {
	ctx := NewContext(&config.ResolvedShellConfig{
		Name: "wsl",
		Kind: config.KindWSL,
	})

	// Mount paths map back to the drive path the host can spawn in.
	dir, env := ctx.SpawnDir("/mnt/c/Users/dev")
	if dir != `C:\Users\dev` {
		t.Errorf("dir = %q, want C:\\Users\\dev", dir)
	}
	if len(env) != 0 {
		t.Errorf("env = %v, want empty", env)
	}

	// A Unix-only path cannot host the launcher; the original travels in
	// the environment instead.
	dir, env = ctx.SpawnDir("/tmp/work")
	if len(env) != 1 || env[0] != InnerPwdEnv+"=/tmp/work" {
		t.Errorf("env = %v, want [%s=/tmp/work]", env, InnerPwdEnv)
	}
	_ = dir // host cwd, whatever it is
}

func TestSpawnDirGitBash(t *testing.T) {
	ctx := NewContext(&config.ResolvedShellConfig{
		Name: "gitbash",
		Kind: config.KindGitBash,
	})

	dir, _ := ctx.SpawnDir("/c/Users/dev")
	if dir != `C:\Users\dev` {
		t.Errorf("dir = %q, want C:\\Users\\dev", dir)
	}

	dir, _ = ctx.SpawnDir(`C:\Users\dev`)
	if dir != `C:\Users\dev` {
		t.Errorf("native dir = %q", dir)
	}
}

func TestSpawnDirEmpty(t *testing.T) {
	ctx := NewContext(&config.ResolvedShellConfig{Name: "bash", Kind: config.KindUnix})
	dir, env := ctx.SpawnDir("")
	if dir != "" || env != nil {
		t.Errorf("empty workingDir: got (%q, %v)", dir, env)
	}
}
