package turnip

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

func newHttpClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	transport.TLSHandshakeTimeout = 30 * time.Second

	// No overall timeout: the NDK archive is ~700MB. Cancellation comes from ctx.
	return &http.Client{Transport: transport}
}

// Fetcher downloads archives with curl, wget or the native HTTP client.
type Fetcher struct {
	Mode     string // auto, curl, wget or native
	Exec     Runner
	Client   *http.Client
	LookPath func(string) (string, error)
	Quiet    bool      // Quiet suppresses tool output and the progress bar
	Progress io.Writer // Progress receives the native progress bar; defaults to stderr
}

func (f *Fetcher) lookPath(name string) bool {
	lp := f.LookPath
	if lp == nil {
		lp = exec.LookPath
	}
	_, err := lp(name)
	return err == nil
}

// Download fetches url into dest. dest only appears once the transfer completed.
func (f *Fetcher) Download(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", dest, err)
	}
	part := dest + ".part"
	defer os.Remove(part)

	mode := f.Mode
	if mode == "" {
		mode = "auto"
	}

	var err error
	switch mode {
	case "curl":
		err = f.downloadCurl(url, part)
	case "wget":
		err = f.downloadWget(url, part)
	case "native":
		err = f.downloadNative(ctx, url, part)
	default:
		err = f.downloadAuto(ctx, url, part)
	}
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	if err := os.Rename(part, dest); err != nil {
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	return nil
}

func (f *Fetcher) downloadAuto(ctx context.Context, url, dest string) error {
	// --- Primary Choice: curl ---
	if f.Exec != nil && f.lookPath("curl") {
		if err := f.downloadCurl(url, dest); err == nil {
			return nil
		} else if ctx.Err() != nil {
			return err
		}
		debugf("curl failed, falling back to wget\n")
	}

	// --- Fallback 1: wget ---
	if f.Exec != nil && f.lookPath("wget") {
		if err := f.downloadWget(url, dest); err == nil {
			return nil
		} else if ctx.Err() != nil {
			return err
		}
		debugf("wget failed, falling back to native Go HTTP client\n")
	}

	// --- Fallback 2: Native Go HTTP Client ---
	return f.downloadNative(ctx, url, dest)
}

func (f *Fetcher) downloadCurl(url, dest string) error {
	if f.Exec == nil {
		return fmt.Errorf("no executor configured for curl")
	}
	args := []string{"-L", "--fail", "-o", dest}
	if f.Quiet {
		args = append(args, "-sS")
	} else {
		args = append(args, "-#")
	}
	cmd := exec.Command("curl", append(args, url)...)
	if f.Quiet {
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
	}
	return f.Exec.Run(cmd)
}

func (f *Fetcher) downloadWget(url, dest string) error {
	if f.Exec == nil {
		return fmt.Errorf("no executor configured for wget")
	}
	args := []string{"-nv", "-O", dest, url}
	if f.Quiet {
		args[0] = "-q"
	}
	cmd := exec.Command("wget", args...)
	if f.Quiet {
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
	}
	return f.Exec.Run(cmd)
}

func (f *Fetcher) downloadNative(ctx context.Context, url, dest string) error {
	client := f.Client
	if client == nil {
		client = newHttpClient()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("native http get failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %s", resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", dest, err)
	}
	defer out.Close()

	var w io.Writer = out
	if !f.Quiet {
		progress := f.Progress
		if progress == nil {
			progress = os.Stderr
		}
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(progress),
			progressbar.OptionSetDescription(filepath.Base(url)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionEnableColorCodes(isTerminal(progress)),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(progress) }),
		)
		defer bar.Close()
		w = io.MultiWriter(out, bar)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to write to destination file: %w", err)
	}
	debugf("Download successful with native Go HTTP client.\n")
	return out.Close()
}

// isTerminal reports whether w is a TTY-backed *os.File.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
