package evidence

import (
	"os"
	"path/filepath"
)

// EnsureParent creates the directories leading to path.
func EnsureParent(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// WriteFileAtomic writes through a sibling temp file and renames it
// into place, so a reader of the run tree never sees a partial
// analysis report or manifest.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := EnsureParent(path); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
