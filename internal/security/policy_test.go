package security

import (
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		wantExe  string
		wantArgs []string
	}{
		{"simple", "ls -la", "ls", []string{"-la"}},
		{"empty", "", "", nil},
		{"spaces only", "   \t  ", "", nil},
		{"double quotes", `echo "hello world"`, "echo", []string{"hello world"}},
		{"single quotes", `grep 'a b' file.txt`, "grep", []string{"a b", "file.txt"}},
		{"adjacent quoted", `echo a"b c"d`, "echo", []string{"ab cd"}},
		{"unterminated quote", `echo "unclosed`, "echo", []string{"unclosed"}},
		{"tabs", "dir\t/w", "dir", []string{"/w"}},
		{"windows path exe", `C:\Windows\System32\cmd.exe /c dir`, `C:\Windows\System32\cmd.exe`, []string{"/c", "dir"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			exe, args := Tokenize(tc.command)
			if exe != tc.wantExe {
				t.Errorf("exe = %q, want %q", exe, tc.wantExe)
			}
			if len(args) != len(tc.wantArgs) {
				t.Fatalf("args = %q, want %q", args, tc.wantArgs)
			}
			for i := range args {
				if args[i] != tc.wantArgs[i] {
					t.Errorf("args[%d] = %q, want %q", i, args[i], tc.wantArgs[i])
				}
			}
		})
	}
}

func TestIsCommandBlocked(t *testing.T) {
	blocked := []string{"rm", "del", "format", "Shutdown"}

	tests := []struct {
		exe  string
		want bool
	}{
		{"rm", true},
		{"RM", true},
		{"rm.exe", true},
		{"del.cmd", true},
		{"shutdown.bat", true},
		{`C:\Windows\System32\format.com`, true},
		{"/usr/bin/rm", true},
		{"ls", false},
		{"rmdir", false}, // base name must match exactly
		{"formatter", false},
	}

	for _, tc := range tests {
		if got := IsCommandBlocked(tc.exe, blocked); got != tc.want {
			t.Errorf("IsCommandBlocked(%q) = %v, want %v", tc.exe, got, tc.want)
		}
	}
}

func TestIsArgumentBlocked(t *testing.T) {
	blocked := []string{"--exec", "-e", "-EncodedCommand"}

	offending, found := IsArgumentBlocked([]string{"-la", "--exec", "foo"}, blocked)
	if !found || offending != "--exec" {
		t.Errorf("got (%q, %v), want (--exec, true)", offending, found)
	}

	// Case-insensitive.
	offending, found = IsArgumentBlocked([]string{"-encodedcommand"}, blocked)
	if !found || offending != "-encodedcommand" {
		t.Errorf("got (%q, %v), want match", offending, found)
	}

	if _, found := IsArgumentBlocked([]string{"-la", "/tmp"}, blocked); found {
		t.Error("clean arguments flagged as blocked")
	}

	// Exact match only: a blocked flag embedded in a longer token passes.
	if _, found := IsArgumentBlocked([]string{"--executor"}, blocked); found {
		t.Error("--executor should not match --exec")
	}
}

func TestValidateShellOperators(t *testing.T) {
	blocked := []string{"&", "|", ";", "`"}

	tests := []struct {
		name    string
		command string
		wantErr bool
	}{
		{"clean", "ls -la", false},
		{"chain operator allowed", "cd /tmp && ls", false},
		{"pipe", "cat file | grep x", true},
		{"semicolon", "ls; rm x", true},
		{"single ampersand", "sleep 5 & echo done", true},
		{"backtick", "echo `whoami`", true},
		{"multiple chains", "a && b && c", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateShellOperators(tc.command, blocked)
			if tc.wantErr && err == nil {
				t.Errorf("ValidateShellOperators(%q) = nil, want error", tc.command)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("ValidateShellOperators(%q) = %v, want nil", tc.command, err)
			}
		})
	}
}
