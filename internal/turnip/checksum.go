package turnip

import (
	"fmt"
	"io"
	"os"
	"strings"

	"lukechampine.com/blake3"
)

// fileBlake3 returns the hex BLAKE3-256 digest of the file at path.
func fileBlake3(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.CopyBuffer(h, f, make([]byte, 1<<20)); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// verifyChecksum compares the file's digest against want. An empty want skips the check.
func verifyChecksum(path, want string) error {
	want = strings.ToLower(strings.TrimSpace(want))
	if want == "" {
		debugf("No checksum configured for %s, skipping verification\n", path)
		return nil
	}
	got, err := fileBlake3(path)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w for %s: expected %s, got %s", ErrChecksumMismatch, path, want, got)
	}
	debugf("Checksum OK for %s\n", path)
	return nil
}
