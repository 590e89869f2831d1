// Package probe performs an optional pre-deploy reachability check of the
// target host, so an unreachable device is reported before any build or
// transfer work is attempted against it.
package probe

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"

	"crossdeploy/internal/errdefs"
)

// HostProber checks that the transfer port of a host is reachable.
type HostProber struct {
	timeout time.Duration
}

// New creates a prober with a per-scan timeout.
func New(timeout time.Duration) *HostProber {
	return &HostProber{timeout: timeout}
}

// Probe scans the host's SSH port and fails with a connection error when
// the host is down or the port is not open.
func (p *HostProber) Probe(ctx context.Context, address string) error {
	host, port, err := splitHostPort(address)
	if err != nil {
		return errdefs.Wrap(err, errdefs.CodeInvalidConfig, "host address %q", address)
	}

	scanCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	scanner, err := nmap.NewScanner(
		scanCtx,
		nmap.WithTargets(host),
		nmap.WithPorts(strconv.Itoa(int(port))),
		nmap.WithSkipHostDiscovery(),
	)
	if err != nil {
		return fmt.Errorf("create scanner: %w", err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		return errdefs.Wrap(err, errdefs.CodeConnection, "preflight scan of %s", host)
	}
	if warnings != nil && len(*warnings) > 0 {
		log.Printf("Preflight scan warnings for %s: %v", host, *warnings)
	}

	for _, h := range result.Hosts {
		for _, hp := range h.Ports {
			if hp.ID == port && hp.State.State == "open" {
				return nil
			}
		}
	}
	return errdefs.New(errdefs.CodeConnection, "host %s port %d is not open", host, port)
}

// splitHostPort separates an optional port from the address. An address
// without a port defaults to the SSH port; a non-numeric or out-of-range
// port is an error rather than a scan that can never match.
func splitHostPort(address string) (string, uint16, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return address, 22, nil
	}
	n, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return host, uint16(n), nil
}
