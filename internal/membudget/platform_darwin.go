//go:build darwin

package membudget

import (
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

func platformMemory() (Memory, error) {
	total, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return Memory{}, err
	}
	// Available memory needs the mach VM statistics; report none.
	return Memory{TotalBytes: total}, nil
}

func platformModel(_ afero.Fs) (string, error) {
	return unix.Sysctl("hw.model")
}
