package shell

import (
	"os"
	"strings"

	"github.com/jkaninda/amri/internal/config"
)

// InnerPwdEnv carries the original Unix-only working directory to the
// inner shell emulation layer when the host process cannot chdir into it
// (a WSL path like /tmp has no host equivalent to spawn in).
const InnerPwdEnv = "AMRI_INNER_PWD"

// SpawnSpec is everything the executor needs to start the shell process.
type SpawnSpec struct {
	Executable string
	Args       []string
	Dir        string   // Host-native spawn directory.
	ExtraEnv   []string // KEY=VALUE pairs appended to the host environment.
}

// BuildSpawnSpec assembles the shell invocation for a validated command.
//
// For WSL and Unix-style shells the validated tokens are appended as
// discrete arguments after the shell's fixed wrapper args, so the
// tokenization that passed validation, not a second reparse, determines
// what runs. Native Windows shells receive the whole command string as a
// single token after their command flag.
func (c *Context) BuildSpawnSpec(command string, tokens []string, workingDir string) SpawnSpec {
	cfg := c.Config
	spec := SpawnSpec{
		Executable: cfg.Executable,
		Args:       append([]string(nil), cfg.Args...),
	}

	switch cfg.Kind {
	case config.KindWSL, config.KindUnix:
		spec.Args = append(spec.Args, tokens...)
	default:
		spec.Args = append(spec.Args, command)
	}

	spec.Dir, spec.ExtraEnv = c.SpawnDir(workingDir)
	return spec
}

// SpawnDir translates the request's working directory into a directory the
// host OS can spawn in. The launcher process itself always runs on the
// host, so WSL mount paths are mapped back to drive paths and Git-Bash
// paths are normalized to native form. A pure-Unix-only path falls back to
// the host's own cwd, with the original exported via InnerPwdEnv for the
// inner shell layer to honor.
func (c *Context) SpawnDir(workingDir string) (dir string, extraEnv []string) {
	if workingDir == "" {
		return "", nil
	}

	switch c.Config.Kind {
	case config.KindWSL:
		if IsWindowsPath(workingDir) {
			return NormalizeWindowsPath(workingDir), nil
		}
		if win, ok := WSLToWindowsPath(workingDir, c.MountPoint()); ok {
			return win, nil
		}
		// Unix-only path: spawn where the host already is and tell the
		// inner shell where it should be.
		hostCwd, err := os.Getwd()
		if err != nil {
			hostCwd = ""
		}
		return hostCwd, []string{InnerPwdEnv + "=" + workingDir}
	case config.KindGitBash:
		if win, ok := GitBashToWindowsPath(workingDir); ok {
			return win, nil
		}
		if IsWindowsPath(workingDir) {
			return NormalizeWindowsPath(workingDir), nil
		}
		return workingDir, nil
	case config.KindWindows:
		return NormalizeWindowsPath(workingDir), nil
	default:
		return strings.ReplaceAll(workingDir, `\`, "/"), nil
	}
}
