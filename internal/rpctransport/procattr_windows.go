//go:build windows

package rpctransport

import (
	"os/exec"
	"syscall"
)

// createNoWindow prevents a console window from flashing up for each
// spawned capability server on Windows.
const createNoWindow = 0x08000000

func setPlatformProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNoWindow}
}
