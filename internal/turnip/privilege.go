package turnip

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

var authOnce sync.Once

// authenticateOnce primes the sudo ticket and keeps it alive for the rest of the run.
func authenticateOnce() error {
	if os.Geteuid() == 0 {
		return nil // Already root
	}
	var authErr error
	authOnce.Do(func() {
		cmd := exec.Command("sudo", "-v")
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			authErr = fmt.Errorf("sudo authentication failed: %w", err)
			return
		}

		// apt-get can outlive the default sudo timeout on slow mirrors.
		go func() {
			ticker := time.NewTicker(4 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				exec.Command("sudo", "-nv").Run()
			}
		}()

		step("Authenticated via sudo")
	})
	return authErr
}
