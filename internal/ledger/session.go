package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hyperledger/fabric-gateway/pkg/client"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/trapeze-h2020/ledger-gateway/internal/tracing"
)

// Dispatch modes, used as metric and span labels.
const (
	ModeSubmit   = "submit"
	ModeEvaluate = "evaluate"
)

// fabricSession wraps one gateway connection. It is created per request and
// must never be shared between requests.
type fabricSession struct {
	gateway  *client.Gateway
	conn     *grpc.ClientConn
	identity string
	metrics  *Metrics

	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
}

func newFabricSession(gw *client.Gateway, conn *grpc.ClientConn, identity string, metrics *Metrics) *fabricSession {
	return &fabricSession{
		gateway:  gw,
		conn:     conn,
		identity: identity,
		metrics:  metrics,
	}
}

// Contract resolves a binding for channel + chaincode. With the gateway API
// the network lookup is local; a bad channel or chaincode name surfaces on
// first dispatch, so only structural problems are reported here.
func (s *fabricSession) Contract(channel, chaincode string) (Contract, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, &Error{Stage: StageBind, Err: ErrSessionClosed}
	}
	if channel == "" || chaincode == "" {
		return nil, &Error{Stage: StageBind, Err: fmt.Errorf("channel %q and chaincode %q must be non-empty", channel, chaincode)}
	}

	network := s.gateway.GetNetwork(channel)
	return &fabricContract{
		contract:  network.GetContract(chaincode),
		channel:   channel,
		chaincode: chaincode,
		metrics:   s.metrics,
	}, nil
}

// Close releases the gateway client and its transport. Only the first call
// has effect; a binding obtained from this session is invalid afterwards.
func (s *fabricSession) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if err := s.gateway.Close(); err != nil {
			slog.Warn("failed to close gateway session", "identity", s.identity, "error", err)
		}
		if err := s.conn.Close(); err != nil {
			slog.Warn("failed to close gateway connection", "identity", s.identity, "error", err)
		}
		s.metrics.RecordSessionClose()
	})
}

// fabricContract dispatches named transactions against a bound contract.
type fabricContract struct {
	contract  *client.Contract
	channel   string
	chaincode string
	metrics   *Metrics
}

// Submit executes a state-mutating transaction, blocking until the network
// has ordered and committed it. The per-phase deadlines configured at open
// bound the call.
func (c *fabricContract) Submit(ctx context.Context, name string, args ...string) ([]byte, error) {
	return c.dispatch(ctx, ModeSubmit, name, args)
}

// Evaluate executes a read-only transaction without appending to the
// ledger. The result reflects a single peer's current view.
func (c *fabricContract) Evaluate(ctx context.Context, name string, args ...string) ([]byte, error) {
	return c.dispatch(ctx, ModeEvaluate, name, args)
}

func (c *fabricContract) dispatch(ctx context.Context, mode, name string, args []string) ([]byte, error) {
	_, endSpan := tracing.StartLedgerSpan(ctx, name, mode, c.channel, c.chaincode)

	start := time.Now()
	var result []byte
	var err error
	if mode == ModeSubmit {
		result, err = c.contract.SubmitTransaction(name, args...)
	} else {
		result, err = c.contract.EvaluateTransaction(name, args...)
	}
	c.metrics.ObserveTransaction(name, mode, err == nil, time.Since(start))

	if err != nil {
		lerr := &Error{Stage: StageDispatch, Op: name, Err: describeTransactionError(err)}
		endSpan(lerr)
		return nil, lerr
	}
	endSpan(nil)
	return result, nil
}

// describeTransactionError unpacks the gateway client's typed transaction
// errors so the failing phase and transaction ID survive into logs and
// client-facing detail.
func describeTransactionError(err error) error {
	var endorseErr *client.EndorseError
	var submitErr *client.SubmitError
	var commitStatusErr *client.CommitStatusError
	var commitErr *client.CommitError

	switch {
	case errors.As(err, &endorseErr):
		return fmt.Errorf("endorse failed for transaction %s (%s): %w",
			endorseErr.TransactionID, status.Code(endorseErr), err)
	case errors.As(err, &submitErr):
		return fmt.Errorf("submit failed for transaction %s (%s): %w",
			submitErr.TransactionID, status.Code(submitErr), err)
	case errors.As(err, &commitStatusErr):
		return fmt.Errorf("commit status unavailable for transaction %s (%s): %w",
			commitStatusErr.TransactionID, status.Code(commitStatusErr), err)
	case errors.As(err, &commitErr):
		return fmt.Errorf("transaction %s failed to commit with status %d: %w",
			commitErr.TransactionID, int32(commitErr.Code), err)
	default:
		return err
	}
}
