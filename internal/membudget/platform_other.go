//go:build !darwin && !linux

package membudget

import (
	"errors"

	"github.com/spf13/afero"
)

var errUnsupportedPlatform = errors.New("not supported on this platform")

func platformMemory() (Memory, error) {
	return Memory{}, errUnsupportedPlatform
}

func platformModel(_ afero.Fs) (string, error) {
	return "", errUnsupportedPlatform
}
