//go:build windows

package executor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"
)

func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	// Best-effort: kill the process tree via taskkill.
	pid := strconv.Itoa(cmd.Process.Pid)
	runTaskkill := func(args ...string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return exec.CommandContext(ctx, "taskkill", args...).Run()
	}

	if err := runTaskkill("/T", "/PID", pid); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			_ = cmd.Process.Kill()
			return
		}
	}
	time.Sleep(250 * time.Millisecond)
	if err := runTaskkill("/T", "/F", "/PID", pid); err != nil {
		_ = cmd.Process.Kill()
	}
}

func exitCodeFromProcessState(ps *os.ProcessState) int {
	if ps == nil {
		return -1
	}
	return ps.ExitCode()
}
