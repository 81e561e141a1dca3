package security

import (
	"fmt"
	"strings"

	"github.com/jkaninda/amri/internal/shell"
)

// directory-change commands recognized across the supported dialects.
var chdirCommands = map[string]bool{
	"cd":           true,
	"chdir":        true,
	"pushd":        true,
	"set-location": true,
	"sl":           true,
}

// ValidateCommand validates a full command chain against the shell's
// resolved policy. The chain is split on the "&&" operator only; every
// step is checked independently (blocklists, operators, length) and
// directory-change steps are tracked with a cursor that starts at
// workingDir, so a later relative "cd" is validated against where the
// chain would actually be by then.
//
// Atomic all-or-nothing: the first violation anywhere in the chain aborts
// validation for the whole command, and the returned error names the
// offending step. No step of a rejected chain is ever executed.
func ValidateCommand(ctx *shell.Context, command, workingDir string) error {
	cfg := ctx.Config

	if cfg.EnableInjectionProtection {
		if err := ValidateShellOperators(command, cfg.BlockedOperators); err != nil {
			return err
		}
	}

	cursor := workingDir
	steps := strings.Split(command, ChainOperator)
	for i, step := range steps {
		step = strings.TrimSpace(step)
		if step == "" {
			return fmt.Errorf("%w: step %d is empty", ErrOperatorBlocked, i+1)
		}
		// The length limit applies per step: a long chain of short steps
		// is fine, one oversized step is not.
		if len(step) > cfg.MaxCommandLength {
			return fmt.Errorf("%w: step %d: %d characters (limit %d)",
				ErrCommandTooLong, i+1, len(step), cfg.MaxCommandLength)
		}

		exe, args := Tokenize(step)
		if exe == "" {
			return fmt.Errorf("%w: step %d (%q) has no executable", ErrCommandBlocked, i+1, step)
		}

		if IsCommandBlocked(exe, cfg.BlockedCommands) {
			return fmt.Errorf("%w: step %d: command %q is not permitted", ErrCommandBlocked, i+1, exe)
		}
		if offending, found := IsArgumentBlocked(args, cfg.BlockedArguments); found {
			return fmt.Errorf("%w: step %d: argument %q is not permitted", ErrArgumentBlocked, i+1, offending)
		}

		if chdirCommands[strings.ToLower(baseCommandName(exe))] {
			target := chdirTarget(args)
			if target == "" {
				continue // bare "cd", no cursor movement to validate
			}
			resolved := ctx.ResolvePath(cursor, target)
			if err := ctx.ValidateWorkingDir(resolved); err != nil {
				return fmt.Errorf("%w: step %d: %v", ErrDirectoryNotAllowed, i+1, err)
			}
			cursor = resolved
		}
	}
	return nil
}

// chdirTarget extracts the directory operand of a cd-style step, skipping
// cmd.exe's /d drive-switch flag.
func chdirTarget(args []string) string {
	for _, a := range args {
		if strings.EqualFold(a, "/d") {
			continue
		}
		return a
	}
	return ""
}
