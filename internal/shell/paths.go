package shell

import (
	"fmt"
	"path"
	"strings"

	"github.com/jkaninda/amri/internal/config"
)

// Path translation between the three path dialects the gateway sees:
//
//	windows:  C:\Users\dev\project
//	gitbash:  /c/Users/dev/project
//	wsl:      /mnt/c/Users/dev/project   (mount point configurable)
//
// All comparisons against the allow-list happen on canonical forms:
// lowercase, forward slashes, no trailing separator. A single input path
// can have more than one canonical form (a Git-Bash path is valid in both
// spellings); the allow-list check passes when any candidate form is
// contained in any allowed form.

// IsWindowsPath reports whether p starts with a drive designator (C:\ or C:/).
func IsWindowsPath(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
		return false
	}
	return len(p) == 2 || p[2] == '\\' || p[2] == '/'
}

// NormalizeWindowsPath converts slashes, upcases the drive letter, and
// removes any trailing separator (except on a bare drive root).
func NormalizeWindowsPath(p string) string {
	if !IsWindowsPath(p) {
		return p
	}
	slashed := path.Clean(strings.ReplaceAll(p, `\`, "/"))
	out := strings.ReplaceAll(slashed, "/", `\`)
	out = strings.ToUpper(out[:1]) + out[1:]
	if len(out) == 2 {
		out += `\` // bare "C:" means the drive root here
	}
	return out
}

// WindowsToWSLPath converts C:\foo\bar into <mount>c/foo/bar.
// Non-Windows paths are returned cleaned but otherwise untouched.
func WindowsToWSLPath(p, mountPoint string) string {
	if mountPoint == "" {
		mountPoint = "/mnt/"
	}
	if !IsWindowsPath(p) {
		return path.Clean(strings.ReplaceAll(p, `\`, "/"))
	}
	drive := strings.ToLower(p[:1])
	rest := strings.ReplaceAll(p[2:], `\`, "/")
	return path.Clean(mountPoint + drive + "/" + rest)
}

// WSLToWindowsPath converts <mount><drive>/rest into <drive>:\rest.
// The second return is false when p does not live under the mount point
// (a pure-Unix path like /tmp has no Windows equivalent).
func WSLToWindowsPath(p, mountPoint string) (string, bool) {
	if mountPoint == "" {
		mountPoint = "/mnt/"
	}
	cleaned := path.Clean(strings.ReplaceAll(p, `\`, "/"))
	prefix := path.Clean(mountPoint) + "/"
	if !strings.HasPrefix(cleaned, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(cleaned, prefix)
	drive, tail, _ := strings.Cut(rest, "/")
	if len(drive) != 1 {
		return "", false
	}
	win := strings.ToUpper(drive) + `:\` + strings.ReplaceAll(tail, "/", `\`)
	return NormalizeWindowsPath(win), true
}

// GitBashToWindowsPath converts /c/foo into C:\foo. The second return is
// false when p is not a drive-mapped Git-Bash path.
func GitBashToWindowsPath(p string) (string, bool) {
	cleaned := path.Clean(strings.ReplaceAll(p, `\`, "/"))
	if len(cleaned) < 2 || cleaned[0] != '/' {
		return "", false
	}
	rest := cleaned[1:]
	drive, tail, _ := strings.Cut(rest, "/")
	if len(drive) != 1 {
		return "", false
	}
	c := drive[0]
	if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
		return "", false
	}
	return NormalizeWindowsPath(strings.ToUpper(drive) + `:\` + strings.ReplaceAll(tail, "/", `\`)), true
}

// WindowsToGitBashPath converts C:\foo into /c/foo.
func WindowsToGitBashPath(p string) string {
	if !IsWindowsPath(p) {
		return path.Clean(strings.ReplaceAll(p, `\`, "/"))
	}
	drive := strings.ToLower(p[:1])
	rest := strings.ReplaceAll(p[2:], `\`, "/")
	return path.Clean("/" + drive + "/" + rest)
}

// ResolvePath resolves target against cursor: absolute targets (in any
// recognized dialect) replace the cursor, relative targets are joined to
// it. The result keeps the cursor's dialect spelling.
func (c *Context) ResolvePath(cursor, target string) string {
	if IsWindowsPath(target) {
		return NormalizeWindowsPath(target)
	}
	slashTarget := strings.ReplaceAll(target, `\`, "/")
	if strings.HasPrefix(slashTarget, "/") {
		return path.Clean(slashTarget)
	}

	// Relative: join in slash space, restore Windows spelling if the
	// cursor carried one.
	cursorWin := IsWindowsPath(cursor)
	slashCursor := strings.ReplaceAll(cursor, `\`, "/")
	joined := path.Join(slashCursor, slashTarget)
	if cursorWin {
		return NormalizeWindowsPath(strings.ReplaceAll(joined, "/", `\`))
	}
	return joined
}

// canonicalForms returns every canonical spelling of p relevant under this
// shell's dialect, lowercase with forward slashes. A Windows path aimed at
// a WSL shell is translated to its mount form first; a Git-Bash shell
// yields both the Windows and Unix spellings.
func (c *Context) canonicalForms(p string) []string {
	var forms []string
	add := func(s string) {
		if s == "" {
			return
		}
		s = strings.ToLower(path.Clean(strings.ReplaceAll(s, `\`, "/")))
		for _, f := range forms {
			if f == s {
				return
			}
		}
		forms = append(forms, s)
	}

	switch c.Config.Kind {
	case config.KindWSL:
		if IsWindowsPath(p) {
			add(WindowsToWSLPath(p, c.MountPoint()))
		} else {
			add(p)
			if win, ok := WSLToWindowsPath(p, c.MountPoint()); ok {
				add(win)
			}
		}
	case config.KindGitBash:
		if IsWindowsPath(p) {
			add(NormalizeWindowsPath(p))
			add(WindowsToGitBashPath(p))
		} else {
			add(p)
			if win, ok := GitBashToWindowsPath(p); ok {
				add(win)
			}
		}
	case config.KindWindows:
		add(NormalizeWindowsPath(p))
	default:
		add(p)
	}
	return forms
}

// allowedForms canonicalizes an allow-list entry the same way candidate
// paths are canonicalized, so entries may be written in either spelling.
func (c *Context) allowedForms(entry string) []string {
	return c.canonicalForms(entry)
}

// ValidateWorkingDir checks dir against the shell's allow-list. An empty
// allow-list under restriction permits nothing: validation fails rather
// than falling open.
func (c *Context) ValidateWorkingDir(dir string) error {
	cfg := c.Config
	if !cfg.RestrictWorkingDirectory {
		return nil
	}
	if len(cfg.AllowedPaths) == 0 {
		return fmt.Errorf("working directory %q denied: allowed path list is empty, nothing is permitted", dir)
	}

	candidates := c.canonicalForms(dir)
	for _, allowed := range cfg.AllowedPaths {
		for _, af := range c.allowedForms(allowed) {
			for _, cf := range candidates {
				if pathWithin(cf, af) {
					return nil
				}
			}
		}
	}
	return fmt.Errorf("working directory %q is outside the allowed paths (%s)",
		dir, strings.Join(cfg.AllowedPaths, ", "))
}

// pathWithin reports whether child equals parent or sits below it.
// Both inputs must already be canonical (lowercase, forward slashes).
func pathWithin(child, parent string) bool {
	if child == parent {
		return true
	}
	if parent == "/" {
		return strings.HasPrefix(child, "/")
	}
	return strings.HasPrefix(child, parent+"/")
}
