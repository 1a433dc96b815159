package turnip

import (
	"fmt"
	"os"
)

// materializeLibrary copies the freshly built driver to the work directory root.
func materializeLibrary(p Paths) error {
	info, err := os.Stat(p.BuiltLib)
	if err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrLibraryNotFound, p.BuiltLib)
	}
	if err := copyFile(p.BuiltLib, p.StagedLib); err != nil {
		return fmt.Errorf("failed to copy %s: %w", p.BuiltLib, err)
	}
	if _, err := os.Stat(p.StagedLib); err != nil {
		return fmt.Errorf("%w: %s", ErrLibraryNotFound, p.StagedLib)
	}
	debugf("Staged %s (%s)\n", p.StagedLib, humanSize(info.Size()))
	return nil
}
