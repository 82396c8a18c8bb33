// Package port resolves listening ports for the driver.
package port

import (
	"fmt"
	"net"
)

// Free asks the kernel for an unused TCP port on host. The port is released
// before returning, so another process may still claim it first.
func Free(host string) (int, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, fmt.Errorf("finding free port on %s: %w", host, err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}
