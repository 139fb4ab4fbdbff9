package fsutil

import (
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to dir/name atomically using a temp file and rename.
// This ensures readers never observe a partially-written file.
func WriteFileAtomic(dir, name string, data []byte, perm os.FileMode) error {
	return WriteFileAtomicValidated(dir, name, data, perm, nil)
}

// WriteFileAtomicValidated is WriteFileAtomic with an optional validation
// step run against the temp file's path before it is renamed into place. If
// validate returns an error, the temp file is removed and the target file
// is left untouched — a config that fails validation never replaces a
// known-good one.
func WriteFileAtomicValidated(dir, name string, data []byte, perm os.FileMode, validate func(tmpPath string) error) error {
	targetPath := filepath.Join(dir, name)
	tmpPath := filepath.Join(dir, ".tmp-"+name)

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath) // clean up on error, or after a successful rename this is a no-op

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if validate != nil {
		if err := validate(tmpPath); err != nil {
			return err
		}
	}

	return os.Rename(tmpPath, targetPath)
}
