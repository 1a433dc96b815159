package turnip

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// fakeRunner records commands instead of executing them.
type fakeRunner struct {
	mu     sync.Mutex
	calls  [][]string
	dirs   []string
	handle func(cmd *exec.Cmd) error
}

func (f *fakeRunner) Run(cmd *exec.Cmd) error {
	f.mu.Lock()
	f.calls = append(f.calls, slices.Clone(cmd.Args))
	f.dirs = append(f.dirs, cmd.Dir)
	f.mu.Unlock()
	if f.handle != nil {
		return f.handle(cmd)
	}
	return nil
}

func (f *fakeRunner) tools() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, c := range f.calls {
		names = append(names, c[0])
	}
	return names
}

// writeTestZip creates a zip at path holding files in sorted name order.
func writeTestZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)

	zw := zip.NewWriter(out)
	for _, name := range names {
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
		hdr.SetMode(0o755)
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		_, err = io.WriteString(w, files[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func readZipEntry(t *testing.T, path, name string) string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(data)
	}
	t.Fatalf("%s not found in %s", name, path)
	return ""
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// testBuildConfig returns defaults rooted in a temp work directory.
func testBuildConfig(t *testing.T) BuildConfig {
	t.Helper()
	bc := DefaultBuildConfig()
	bc.WorkDir = filepath.Join(t.TempDir(), "work")
	bc.Tools = nil
	return bc
}
