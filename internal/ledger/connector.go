package ledger

import (
	"context"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/hyperledger/fabric-gateway/pkg/client"
	"github.com/hyperledger/fabric-gateway/pkg/hash"
	"github.com/hyperledger/fabric-gateway/pkg/identity"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// Credentials is the resolved material needed to act as a ledger identity.
type Credentials struct {
	MSPID       string
	Certificate []byte // PEM-encoded X.509 certificate
	PrivateKey  []byte // PEM-encoded private key
}

// IdentityResolver maps an identity reference to stored credentials.
// Implementations must resolve a reference to exactly one credential set
// or fail with ErrIdentityNotFound.
type IdentityResolver interface {
	Resolve(reference string) (*Credentials, error)
}

// Profile describes how to reach the ledger network. It is loaded once per
// process and read-only thereafter.
type Profile struct {
	// PeerEndpoint is the host:port of the gateway peer.
	PeerEndpoint string

	// GatewayPeer is the TLS server name of the gateway peer.
	GatewayPeer string

	// TLSCertPath is the path to the PEM-encoded TLS CA certificate used
	// to authenticate the gateway peer.
	TLSCertPath string
}

// DiscoveryConfig holds the fixed per-deployment discovery settings.
// With the gateway API, service discovery itself runs on the gateway peer;
// AsLocalhost rewrites the peer endpoint to a loopback address for
// deployments where discovered endpoints are only reachable locally.
type DiscoveryConfig struct {
	Enabled     bool
	AsLocalhost bool
}

// Timeouts bounds each phase of a ledger interaction. Deadlines are attached
// at session open so every dispatch on the session inherits them.
type Timeouts struct {
	Evaluate     time.Duration
	Endorse      time.Duration
	Submit       time.Duration
	CommitStatus time.Duration
}

// DefaultTimeouts returns the timeouts used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Evaluate:     5 * time.Second,
		Endorse:      15 * time.Second,
		Submit:       5 * time.Second,
		CommitStatus: time.Minute,
	}
}

// Opener opens a scoped gateway session for one request.
type Opener interface {
	// Open resolves the identity reference and establishes a connection to
	// the ledger network. The returned session is exclusively owned by the
	// caller and must be released with Close on every exit path.
	Open(ctx context.Context, identityRef string) (Session, error)
}

// Session is one live connection to the ledger network, scoped to a single
// request. Sessions are never shared or reused across requests.
type Session interface {
	// Contract resolves a binding for the given channel and chaincode
	// namespace. The binding is only valid while the session is open.
	Contract(channel, chaincode string) (Contract, error)

	// Close releases all network resources held by the session. It is
	// idempotent; only the first call has effect.
	Close()
}

// Contract is an invocable handle to a channel + chaincode namespace.
type Contract interface {
	// Submit executes a state-mutating transaction. The call blocks until
	// the network has ordered and committed the transaction.
	Submit(ctx context.Context, name string, args ...string) ([]byte, error)

	// Evaluate executes a read-only transaction against a single peer's
	// current view. Read-your-own-write consistency is NOT guaranteed: a
	// read issued before consensus completes may observe earlier state.
	Evaluate(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Connector opens fabric-backed gateway sessions. It holds the process-wide
// fixed pieces: connection profile, identity resolver, discovery settings
// and per-phase timeouts.
type Connector struct {
	profile   Profile
	resolver  IdentityResolver
	discovery DiscoveryConfig
	timeouts  Timeouts
	metrics   *Metrics
}

// NewConnector creates a Connector. metrics may be nil.
func NewConnector(profile Profile, resolver IdentityResolver, discovery DiscoveryConfig, timeouts Timeouts, metrics *Metrics) *Connector {
	return &Connector{
		profile:   profile,
		resolver:  resolver,
		discovery: discovery,
		timeouts:  timeouts,
		metrics:   metrics,
	}
}

// Open resolves credentials for identityRef and connects to the gateway
// peer. Resolution failures carry StageResolve, connection setup failures
// StageConnect; both are infrastructure errors and leave nothing to release.
func (c *Connector) Open(ctx context.Context, identityRef string) (Session, error) {
	creds, err := c.resolver.Resolve(identityRef)
	if err != nil {
		c.metrics.RecordSessionOpen("failed")
		return nil, &Error{Stage: StageResolve, Err: err}
	}

	conn, err := c.dial()
	if err != nil {
		c.metrics.RecordSessionOpen("failed")
		return nil, &Error{Stage: StageConnect, Err: err}
	}

	gw, err := c.connect(creds, conn)
	if err != nil {
		// The session never opened; release the transport here since no
		// Close will ever be called.
		_ = conn.Close()
		c.metrics.RecordSessionOpen("failed")
		return nil, &Error{Stage: StageConnect, Err: err}
	}

	c.metrics.RecordSessionOpen("ok")
	return newFabricSession(gw, conn, identityRef, c.metrics), nil
}

// dial builds the gRPC client connection to the gateway peer. The
// connection is lazy; transport failures surface on first use.
func (c *Connector) dial() (*grpc.ClientConn, error) {
	pem, err := os.ReadFile(c.profile.TLSCertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway TLS certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", c.profile.TLSCertPath)
	}

	endpoint := c.profile.PeerEndpoint
	if c.discovery.AsLocalhost {
		endpoint = asLocalhost(endpoint)
	}

	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(
		credentials.NewClientTLSFromCert(pool, c.profile.GatewayPeer),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to %s: %w", endpoint, err)
	}
	return conn, nil
}

// connect builds the gateway client for the resolved identity.
func (c *Connector) connect(creds *Credentials, conn *grpc.ClientConn) (*client.Gateway, error) {
	certificate, err := identity.CertificateFromPEM(creds.Certificate)
	if err != nil {
		return nil, fmt.Errorf("invalid identity certificate: %w", err)
	}

	id, err := identity.NewX509Identity(creds.MSPID, certificate)
	if err != nil {
		return nil, fmt.Errorf("failed to build X.509 identity: %w", err)
	}

	privateKey, err := identity.PrivateKeyFromPEM(creds.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid identity private key: %w", err)
	}

	sign, err := identity.NewPrivateKeySign(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build signer: %w", err)
	}

	gw, err := client.Connect(
		id,
		client.WithSign(sign),
		client.WithHash(hash.SHA256),
		client.WithClientConnection(conn),
		client.WithEvaluateTimeout(c.timeouts.Evaluate),
		client.WithEndorseTimeout(c.timeouts.Endorse),
		client.WithSubmitTimeout(c.timeouts.Submit),
		client.WithCommitStatusTimeout(c.timeouts.CommitStatus),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gateway: %w", err)
	}
	return gw, nil
}

// asLocalhost rewrites host:port to 127.0.0.1:port, keeping the original
// endpoint when it cannot be split.
func asLocalhost(endpoint string) string {
	_, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return endpoint
	}
	return net.JoinHostPort("127.0.0.1", port)
}
