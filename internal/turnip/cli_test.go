package turnip

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunExitCodes(t *testing.T) {
	conf := filepath.Join(t.TempDir(), "turnip.conf")
	writeFile(t, conf, "TURNIP_WORKDIR="+filepath.Join(t.TempDir(), "work")+"\n")
	t.Setenv("TURNIP_CONFIG", conf)
	user, root := UserExec, RootExec
	t.Cleanup(func() { UserExec, RootExec = user, root })

	tests := []struct {
		args []string
		want int
	}{
		{[]string{"version"}, 0},
		{[]string{"clean", "-y"}, 0},
		{[]string{"build", "-bogus"}, 1},
		{[]string{"upload", "-bogus"}, 1},
		{[]string{"clean", "-bogus"}, 1},
		{[]string{"frobnicate"}, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, run(context.Background(), tt.args), "args %v", tt.args)
	}
}
