package ipc

import (
	"net"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sentinelgraph/sentinel/pkg/causerr"
)

// SocketMode is the filesystem permission mode the local IPC socket is
// created with (spec §5: "mode 0o660").
const SocketMode = 0o660

// Listen opens the daemon's local control-plane listener. On platforms
// offering Unix domain sockets it listens at socketPath, creating its
// parent directory if absent, removing any stale socket file left by a
// prior run, and chmod'ing it to SocketMode. On platforms without them
// (spec §5: "systems lacking them") it falls back to a loopback TCP port.
func Listen(socketPath, tcpFallbackAddr string) (net.Listener, error) {
	if runtime.GOOS == "windows" || socketPath == "" {
		ln, err := net.Listen("tcp", tcpFallbackAddr)
		if err != nil {
			return nil, causerr.IoError("listen on "+tcpFallbackAddr, err)
		}
		return ln, nil
	}

	dir := filepath.Dir(socketPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, causerr.IoError("create socket directory "+dir, err)
	}

	// Stale socket files from prior runs are removed at startup (spec §5).
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return nil, causerr.IoError("remove stale socket "+socketPath, err)
		}
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, causerr.IoError("listen on "+socketPath, err)
	}
	if err := os.Chmod(socketPath, SocketMode); err != nil {
		ln.Close()
		return nil, causerr.IoError("chmod socket "+socketPath, err)
	}
	return ln, nil
}
