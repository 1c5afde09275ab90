package health

import (
	"context"
	"fmt"
	"net"
	"time"
)

// PeerChecker implements health checking for the Fabric gateway peer by
// probing its gRPC endpoint at the TCP layer. A full ledger round-trip
// would need an identity and a session, which is too heavy for a probe
// that runs every few seconds.
type PeerChecker struct {
	endpoint string
	timeout  time.Duration
}

// NewPeerChecker creates a checker for the given host:port endpoint.
func NewPeerChecker(endpoint string) *PeerChecker {
	return &PeerChecker{
		endpoint: endpoint,
		timeout:  3 * time.Second,
	}
}

// HealthCheck dials the peer endpoint and reports whether it accepted the
// connection.
func (p *PeerChecker) HealthCheck(ctx context.Context) error {
	dialer := net.Dialer{Timeout: p.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.endpoint)
	if err != nil {
		return fmt.Errorf("dial gateway peer %s: %w", p.endpoint, err)
	}
	return conn.Close()
}
