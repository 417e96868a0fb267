// Package pathutil provides path validation utilities.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const writeProbeName = ".altview-write-test"

// CheckDirectoryWritable checks that dir exists (creating it if missing) and
// that a file can be written to it.
func CheckDirectoryWritable(fsys afero.Fs, dir string) error {
	if dir == "" {
		return fmt.Errorf("path cannot be empty")
	}

	info, err := fsys.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("directory %s does not exist and cannot be created: %w", dir, err)
		}
	case err != nil:
		return fmt.Errorf("cannot access directory %s: %w", dir, err)
	case !info.IsDir():
		return fmt.Errorf("path %s exists but is not a directory", dir)
	}

	probe := filepath.Join(dir, writeProbeName)
	if err := afero.WriteFile(fsys, probe, []byte("test"), 0o644); err != nil {
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	_ = fsys.Remove(probe)

	return nil
}

// CheckFileDirectoryWritable checks the directory that would hold filePath.
// An empty filePath is valid (the file is optional).
func CheckFileDirectoryWritable(fsys afero.Fs, filePath, fileType string) error {
	if filePath == "" {
		return nil
	}

	if err := CheckDirectoryWritable(fsys, filepath.Dir(filePath)); err != nil {
		return fmt.Errorf("%s file directory check failed: %w", fileType, err)
	}

	return nil
}
