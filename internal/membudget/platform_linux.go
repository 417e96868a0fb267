//go:build linux

package membudget

import (
	"errors"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// model files, DMI first then the device tree used by ARM boards.
var modelFiles = []string{
	"/sys/class/dmi/id/product_name",
	"/proc/device-tree/model",
}

func platformMemory() (Memory, error) {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return Memory{}, err
	}

	unit := uint64(si.Unit)
	if unit == 0 {
		unit = 1
	}

	return Memory{
		TotalBytes:     uint64(si.Totalram) * unit,
		AvailableBytes: (uint64(si.Freeram) + uint64(si.Bufferram)) * unit,
	}, nil
}

func platformModel(fs afero.Fs) (string, error) {
	for _, name := range modelFiles {
		data, err := afero.ReadFile(fs, name)
		if err != nil {
			continue
		}
		if model := strings.TrimSpace(strings.TrimRight(string(data), "\x00")); model != "" {
			return model, nil
		}
	}
	return "", errors.New("hardware model not reported")
}
