package daemon

import (
	"net"
	"os"
	"time"
)

// New returns a RemoteClient if a consumer answers on socketPath,
// otherwise the given fallback.
//
// Callers don't need to know whether the consumer is running: the same API
// works in both modes.
func New(socketPath string, fallback Client) Client {
	if _, err := os.Stat(socketPath); err == nil {
		conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return NewRemoteClient(socketPath)
		}
	}
	return fallback
}
