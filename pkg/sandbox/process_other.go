//go:build !unix

package sandbox

import (
	"os"
	"os/exec"
)

// Without process groups only the direct child is killed, which is the
// exec.CommandContext default.
func configureProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) error { return os.ErrProcessDone }
