//go:build linux

package linux_agent

import (
	"golang.org/x/sys/unix"
)

func osFileWriteAccess(path string) bool {
	return unix.Access(path, unix.W_OK) == nil
}

func osDiskSpace(path string) int64 {
	fs := unix.Statfs_t{}
	if err := unix.Statfs(path, &fs); err != nil {
		return -1
	}
	return int64(fs.Bavail) * fs.Bsize
}

// osEffectiveUID reports the effective user id; 0 means root. Separated out
// so the installer's root check stays testable.
func osEffectiveUID() int {
	return unix.Geteuid()
}
