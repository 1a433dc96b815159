package turnip

import (
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/blake3"
)

func TestFileBlake3(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mesa-main.zip")
	writeFile(t, path, "turnip")

	sum := blake3.Sum256([]byte("turnip"))
	got, err := fileBlake3(path)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
}

func TestVerifyChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ndk.zip")
	writeFile(t, path, "ndk bytes")
	sum := blake3.Sum256([]byte("ndk bytes"))
	want := hex.EncodeToString(sum[:])

	assert.NoError(t, verifyChecksum(path, ""))
	assert.NoError(t, verifyChecksum(path, want))
	assert.NoError(t, verifyChecksum(path, " "+strings.ToUpper(want)+"\n"))

	err := verifyChecksum(path, strings.Repeat("0", 64))
	require.ErrorIs(t, err, ErrChecksumMismatch)
	assert.Contains(t, err.Error(), want)
}
