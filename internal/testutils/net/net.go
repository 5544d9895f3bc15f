package net

import (
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// SharedPortManager is shared between tests to not hand out the same port twice.
var SharedPortManager = &PortManager{
	usedPorts: make(map[int]bool),
}

type PortManager struct {
	usedPorts map[int]bool
	mutex     sync.Mutex
}

// GetFreePort returns localhost TCP port which is not in use and hasn't been returned before.
func (pm *PortManager) GetFreePort() (int, error) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	for {
		l, err := net.Listen("tcp", "localhost:0")
		if err != nil {
			return 0, fmt.Errorf("listening on random port: %w", err)
		}
		port := l.Addr().(*net.TCPAddr).Port
		if err := l.Close(); err != nil {
			return 0, fmt.Errorf("closing listener: %w", err)
		}

		if !pm.usedPorts[port] {
			pm.usedPorts[port] = true
			return port, nil
		}
	}
}

// FreeAddress returns "localhost:port" address the HTTP server under test could listen on.
func (pm *PortManager) FreeAddress(t *testing.T) string {
	port, err := pm.GetFreePort()
	require.NoError(t, err)
	return fmt.Sprintf("localhost:%d", port)
}
