package turnip

import (
	"archive/tar"
	"compress/bzip2"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

// Extractor unpacks downloaded archives into a destination directory.
type Extractor struct {
	Exec     Runner // runs system unzip; nil forces native extraction
	Native   bool   // Native skips system unzip even when present
	LookPath func(string) (string, error)
}

// Extract dispatches on the archive extension.
func (x *Extractor) Extract(src, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if strings.HasSuffix(src, ".zip") {
		if !x.Native && x.Exec != nil && x.hasUnzip() {
			cmd := exec.Command("unzip", "-q", "-o", src, "-d", dest)
			err := x.Exec.Run(cmd)
			if err == nil {
				debugf("Used system unzip for %s\n", src)
				return nil
			}
			debugf("system unzip failed (%v), falling back to native extraction\n", err)
		}
		return unzipGo(src, dest)
	}
	return extractTar(src, dest)
}

func (x *Extractor) hasUnzip() bool {
	lp := x.LookPath
	if lp == nil {
		lp = exec.LookPath
	}
	_, err := lp("unzip")
	return err == nil
}

// within reports whether path is dest or lies below it.
func within(dest, path string) bool {
	return path == dest || strings.HasPrefix(path, dest+string(os.PathSeparator))
}

// extractRoot makes dest absolute, creates it and resolves its symlinks so
// entry paths can be compared against the real location.
func extractRoot(dest string) (string, error) {
	abs, err := filepath.Abs(dest)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", abs, err)
	}
	return filepath.EvalSymlinks(abs)
}

// safeJoin joins name under dest and rejects entries escaping it, either
// lexically or through a symlink already extracted on the way.
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	if !within(dest, target) {
		return "", fmt.Errorf("illegal file path in archive: %s", name)
	}
	// Resolve the deepest existing ancestor of target.
	for p := target; within(dest, p); p = filepath.Dir(p) {
		real, err := filepath.EvalSymlinks(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		if !within(dest, real) {
			return "", fmt.Errorf("illegal file path in archive: %s resolves outside %s", name, dest)
		}
		break
	}
	return target, nil
}

// checkLinkTarget rejects symlinks at fpath that would point outside dest.
func checkLinkTarget(dest, fpath, target string) error {
	resolved := target
	if !filepath.IsAbs(target) {
		resolved = filepath.Join(filepath.Dir(fpath), target)
	}
	if !within(dest, filepath.Clean(resolved)) {
		return fmt.Errorf("illegal symlink in archive: %s -> %s", fpath, target)
	}
	return nil
}

func unzipGo(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer r.Close()

	dest, err = extractRoot(dest)
	if err != nil {
		return err
	}

	for _, f := range r.File {
		fpath, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}

		mode := f.Mode()
		if mode.IsDir() {
			if err := os.MkdirAll(fpath, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(fpath), 0o755); err != nil {
			return err
		}

		// NDK archives ship their clang wrappers as symlinks.
		if mode&os.ModeSymlink != 0 {
			if err := extractZipSymlink(f, dest, fpath); err != nil {
				return err
			}
			continue
		}

		perm := mode.Perm()
		if perm == 0 {
			perm = 0o644
		}
		outFile, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
		if err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			outFile.Close()
			return err
		}
		_, err = io.Copy(outFile, rc)

		// Close files inside the loop to avoid holding too many file descriptors.
		outFile.Close()
		rc.Close()
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func extractZipSymlink(f *zip.File, dest, fpath string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	target, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return err
	}
	if err := checkLinkTarget(dest, fpath, string(target)); err != nil {
		return err
	}
	_ = os.Remove(fpath)
	if err := os.Symlink(string(target), fpath); err != nil {
		return fmt.Errorf("failed to create symlink %s -> %s: %w", fpath, target, err)
	}
	return nil
}

// extractTar extracts a (possibly compressed) tar archive into dest.
func extractTar(realPath, dest string) error {
	f, err := os.Open(realPath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", realPath, err)
	}
	defer f.Close()

	// Determine the compression type based on file extension
	var r io.Reader = f
	switch {
	case strings.HasSuffix(realPath, ".tar.gz") || strings.HasSuffix(realPath, ".tgz"):
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader for %s: %w", realPath, err)
		}
		defer gz.Close()
		r = gz
	case strings.HasSuffix(realPath, ".tar.bz2"):
		r = bzip2.NewReader(f)
	case strings.HasSuffix(realPath, ".tar.xz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to create xz reader for %s: %w", realPath, err)
		}
		r = xzr
	case strings.HasSuffix(realPath, ".tar.zst"):
		zst, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to create zstd reader for %s: %w", realPath, err)
		}
		defer zst.Close()
		r = zst
	case strings.HasSuffix(realPath, ".tar"):
		// No compression
	default:
		return fmt.Errorf("unsupported archive format: %s", realPath)
	}

	dest, err = extractRoot(dest)
	if err != nil {
		return err
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("error reading tar header in %s: %w", realPath, err)
		}

		// Skip PAX headers (global or per-file)
		if hdr.Typeflag == tar.TypeXHeader || hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		targetPath, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return fmt.Errorf("failed to create parent dir for %s: %w", targetPath, err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, os.FileMode(hdr.Mode).Perm()|0o700); err != nil {
				return fmt.Errorf("failed to create dir %s: %w", targetPath, err)
			}
		case tar.TypeReg:
			outFile, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return fmt.Errorf("failed to create file %s: %w", targetPath, err)
			}
			if _, err := io.Copy(outFile, tr); err != nil {
				outFile.Close()
				return fmt.Errorf("failed to write file %s: %w", targetPath, err)
			}
			outFile.Close()
			if err := os.Chtimes(targetPath, hdr.AccessTime, hdr.ModTime); err != nil {
				debugf("Warning: failed to set times for %s: %v\n", targetPath, err)
			}
		case tar.TypeSymlink:
			if err := checkLinkTarget(dest, targetPath, hdr.Linkname); err != nil {
				return err
			}
			_ = os.Remove(targetPath)
			if err := os.Symlink(hdr.Linkname, targetPath); err != nil {
				return fmt.Errorf("failed to create symlink %s -> %s: %w", targetPath, hdr.Linkname, err)
			}
		default:
			debugf("Skipping unsupported tar entry type %c: %s\n", hdr.Typeflag, hdr.Name)
		}
	}
	return nil
}

// zipEntry is one file to place into a zip archive.
type zipEntry struct {
	Name string // archive path, forward slashes
	Path string // source file on disk
}

// writeZip creates dest containing entries in the given order.
func writeZip(dest string, entries []zipEntry) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	zw := zip.NewWriter(out)

	addEntry := func(e zipEntry) error {
		info, err := os.Stat(e.Path)
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = e.Name
		hdr.Method = zip.Deflate
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		src, err := os.Open(e.Path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	}

	for _, e := range entries {
		if err := addEntry(e); err != nil {
			zw.Close()
			out.Close()
			os.Remove(dest)
			return fmt.Errorf("failed to add %s to %s: %w", e.Name, dest, err)
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("failed to finalize %s: %w", dest, err)
	}
	return out.Close()
}

// zipTree archives every regular file under root, sorted by path.
func zipTree(dest, root string) error {
	var entries []zipEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entries = append(entries, zipEntry{Name: filepath.ToSlash(rel), Path: path})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", root, err)
	}
	slices.SortFunc(entries, func(a, b zipEntry) int { return strings.Compare(a.Name, b.Name) })
	return writeZip(dest, entries)
}

// listZip returns the entry names of a zip archive in stored order.
func listZip(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names, nil
}

// verifyZip checks that path is a non-empty zip holding every required entry.
func verifyZip(path string, required []string) error {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrArtifactMissing, path)
	}
	names, err := listZip(path)
	if err != nil {
		return fmt.Errorf("%w: %s is not a readable zip: %v", ErrArtifactMissing, path, err)
	}
	for _, want := range required {
		if !slices.Contains(names, want) {
			return fmt.Errorf("%w: %s lacks %s", ErrArtifactMissing, path, want)
		}
	}
	return nil
}
