//go:build !windows

package rpctransport

import "os/exec"

// setPlatformProcAttr is a no-op on non-Windows platforms.
func setPlatformProcAttr(cmd *exec.Cmd) {}
