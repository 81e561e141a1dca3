// Package security implements the validation and policy engine of the
// gateway: command tokenization, blocklist enforcement, shell-operator
// injection protection, and chain validation with working-directory
// tracking. Every check is fail-closed: nothing executes until the whole
// command has passed.
package security

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for policy enforcement. Callers branch with errors.Is.
var (
	ErrCommandBlocked      = errors.New("command is blocked")
	ErrArgumentBlocked     = errors.New("argument is blocked")
	ErrOperatorBlocked     = errors.New("shell operator is blocked")
	ErrCommandTooLong      = errors.New("command exceeds maximum length")
	ErrDirectoryNotAllowed = errors.New("working directory not allowed")
)

// ChainOperator is the single chaining operator the gateway supports.
// Everything else a shell could use to glue commands together (;, |, &,
// backticks) is treated as an injection vector when protection is on.
const ChainOperator = "&&"

// windowsExecExtensions are ignored when comparing an executable's base
// name against the command blocklist, so "del.exe" and "del" match alike.
var windowsExecExtensions = []string{".exe", ".cmd", ".bat", ".com", ".ps1"}

// Tokenize splits a single command step into an executable name and its
// arguments, honoring single and double quotes. Quote characters are
// stripped from the resulting tokens; an unterminated quote simply ends
// the token at end of input.
func Tokenize(command string) (exe string, args []string) {
	tokens := splitTokens(command)
	if len(tokens) == 0 {
		return "", nil
	}
	return tokens[0], tokens[1:]
}

func splitTokens(s string) []string {
	var tokens []string
	var cur strings.Builder
	var quote byte
	inToken := false

	flush := func() {
		if inToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			inToken = false
		}
	}

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				cur.WriteByte(ch)
			}
		case ch == '\'' || ch == '"':
			quote = ch
			inToken = true
		case ch == ' ' || ch == '\t':
			flush()
		default:
			cur.WriteByte(ch)
			inToken = true
		}
	}
	flush()
	return tokens
}

// baseCommandName strips any directory prefix and a known Windows
// executable extension, then lowercases. This is the form compared
// against the command blocklist, so "C:\Windows\System32\Reg.exe",
// "reg.exe" and "REG" all hit a "reg" entry.
func baseCommandName(exe string) string {
	name := exe
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.ToLower(name)
	for _, ext := range windowsExecExtensions {
		if strings.HasSuffix(name, ext) {
			name = strings.TrimSuffix(name, ext)
			break
		}
	}
	return name
}

// IsCommandBlocked reports whether the executable's base name matches any
// blocklist entry (case-insensitive).
func IsCommandBlocked(exe string, blocked []string) bool {
	name := baseCommandName(exe)
	for _, b := range blocked {
		if name == strings.ToLower(b) {
			return true
		}
	}
	return false
}

// IsArgumentBlocked reports the first argument matching the blocklist
// (case-insensitive exact match), or "" when all arguments pass.
func IsArgumentBlocked(args []string, blocked []string) (offending string, found bool) {
	for _, arg := range args {
		la := strings.ToLower(arg)
		for _, b := range blocked {
			if la == strings.ToLower(b) {
				return arg, true
			}
		}
	}
	return "", false
}

// ValidateShellOperators rejects the command when it contains a blocked
// shell metacharacter anywhere outside the supported "&&" chaining
// operator. Checked on the raw command string, before tokenization, so
// quoting cannot smuggle an operator past the scan.
func ValidateShellOperators(command string, blockedOperators []string) error {
	// Remove every occurrence of the supported chain operator first, so a
	// blocklist entry of "&" doesn't fire on "&&".
	scrubbed := strings.ReplaceAll(command, ChainOperator, " ")
	for _, op := range blockedOperators {
		if op == "" || op == ChainOperator {
			continue
		}
		if strings.Contains(scrubbed, op) {
			return fmt.Errorf("%w: operator %q is not permitted (only %q chaining is supported)",
				ErrOperatorBlocked, op, ChainOperator)
		}
	}
	return nil
}
