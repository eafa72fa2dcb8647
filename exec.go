package linux_agent

import (
	"os"
	"os/exec"
)

// RunFunc executes an external command. The installer, the self-install
// routine, and the service wrapper all take one so tests can substitute a
// recording fake for systemctl and package-manager invocations.
type RunFunc func(name string, args ...string) error

// execRun is the real RunFunc: it inherits stdout/stderr so tool output
// stays visible to the operator.
func execRun(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// shellRun runs a full shell command line. Dependency check and install
// commands come from config as plain strings with pipes and redirects, the
// same form the package-manager recipes are written in.
func shellRun(run RunFunc, command string) error {
	return run("sh", "-c", command)
}
