//go:build !windows

package discord

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
)

// candidatePaths lists the IPC socket locations in dial order.
func candidatePaths() []string {
	base := "/tmp"
	for _, key := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if v := os.Getenv(key); v != "" {
			base = v
			break
		}
	}
	paths := make([]string, 0, pipeSlots)
	for i := 0; i < pipeSlots; i++ {
		paths = append(paths, filepath.Join(base, "discord-ipc-"+strconv.Itoa(i)))
	}
	return paths
}

func dialPath(ctx context.Context, path string) (io.ReadWriteCloser, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", path)
}
