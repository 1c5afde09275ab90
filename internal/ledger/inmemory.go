package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// InMemoryLedger is an in-memory implementation of Opener that mimics the
// trapeze chaincode's transaction semantics. Used for testing and
// development without a running ledger network.
type InMemoryLedger struct {
	mu       sync.Mutex
	policies map[string]*Policy
	order    []string

	// Identities restricts which identity references resolve. A nil map
	// accepts every reference.
	Identities map[string]bool

	// FailOpen, when set, makes every Open fail with a connect-stage error.
	FailOpen error

	// FailDispatch, when set, makes every dispatch fail with a
	// dispatch-stage error.
	FailDispatch error

	opens  int
	closes int
}

// NewInMemoryLedger creates an empty in-memory ledger. The initial policy
// set is only seeded by an InitLedger transaction, matching the chaincode.
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		policies: make(map[string]*Policy),
	}
}

// Open creates a new session against the shared in-memory state.
func (l *InMemoryLedger) Open(ctx context.Context, identityRef string) (Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.FailOpen != nil {
		return nil, &Error{Stage: StageConnect, Err: l.FailOpen}
	}
	if l.Identities != nil && !l.Identities[identityRef] {
		return nil, &Error{Stage: StageResolve, Err: fmt.Errorf("%w: %q", ErrIdentityNotFound, identityRef)}
	}

	l.opens++
	return &inMemorySession{ledger: l, identity: identityRef}, nil
}

// OpenCount returns how many sessions were successfully opened.
func (l *InMemoryLedger) OpenCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opens
}

// CloseCount returns how many session Close calls took effect.
func (l *InMemoryLedger) CloseCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes
}

// Policies returns a snapshot of the stored policies in insertion order.
func (l *InMemoryLedger) Policies() []Policy {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *InMemoryLedger) snapshotLocked() []Policy {
	out := make([]Policy, 0, len(l.order))
	for _, id := range l.order {
		if p, ok := l.policies[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

type inMemorySession struct {
	ledger   *InMemoryLedger
	identity string

	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
}

func (s *inMemorySession) Contract(channel, chaincode string) (Contract, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, &Error{Stage: StageBind, Err: ErrSessionClosed}
	}
	if channel == "" || chaincode == "" {
		return nil, &Error{Stage: StageBind, Err: fmt.Errorf("channel %q and chaincode %q must be non-empty", channel, chaincode)}
	}
	return &inMemoryContract{session: s}, nil
}

func (s *inMemorySession) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.ledger.mu.Lock()
		s.ledger.closes++
		s.ledger.mu.Unlock()
	})
}

type inMemoryContract struct {
	session *inMemorySession
}

func (c *inMemoryContract) Submit(ctx context.Context, name string, args ...string) ([]byte, error) {
	return c.dispatch(name, args)
}

func (c *inMemoryContract) Evaluate(ctx context.Context, name string, args ...string) ([]byte, error) {
	return c.dispatch(name, args)
}

// dispatch mirrors the trapeze chaincode operation set.
func (c *inMemoryContract) dispatch(name string, args []string) ([]byte, error) {
	c.session.mu.Lock()
	closed := c.session.closed
	c.session.mu.Unlock()
	if closed {
		return nil, &Error{Stage: StageDispatch, Op: name, Err: ErrSessionClosed}
	}

	l := c.session.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.FailDispatch != nil {
		return nil, &Error{Stage: StageDispatch, Op: name, Err: l.FailDispatch}
	}

	switch name {
	case "InitLedger":
		for _, p := range seedPolicies() {
			seeded := p
			if _, exists := l.policies[seeded.ID]; !exists {
				l.order = append(l.order, seeded.ID)
			}
			l.policies[seeded.ID] = &seeded
		}
		return nil, nil

	case "CreatePolicy":
		p, err := policyFromArgs(name, args)
		if err != nil {
			return nil, err
		}
		if _, exists := l.policies[p.ID]; exists {
			return nil, &Error{Stage: StageDispatch, Op: name, Err: fmt.Errorf("the policy %s already exists", p.ID)}
		}
		l.policies[p.ID] = p
		l.order = append(l.order, p.ID)
		return nil, nil

	case "ReadPolicy":
		if len(args) != 1 {
			return nil, badArgCount(name, 1, len(args))
		}
		p, exists := l.policies[args[0]]
		if !exists {
			return nil, notExist(name, args[0])
		}
		return json.Marshal(p)

	case "GetAllPolicies":
		return json.Marshal(l.snapshotLocked())

	case "UpdatePolicy":
		p, err := policyFromArgs(name, args)
		if err != nil {
			return nil, err
		}
		if _, exists := l.policies[p.ID]; !exists {
			return nil, notExist(name, p.ID)
		}
		l.policies[p.ID] = p
		return nil, nil

	case "DeletePolicy":
		if len(args) != 1 {
			return nil, badArgCount(name, 1, len(args))
		}
		if _, exists := l.policies[args[0]]; !exists {
			return nil, notExist(name, args[0])
		}
		delete(l.policies, args[0])
		for i, id := range l.order {
			if id == args[0] {
				l.order = append(l.order[:i], l.order[i+1:]...)
				break
			}
		}
		return nil, nil

	default:
		return nil, &Error{Stage: StageDispatch, Op: name, Err: fmt.Errorf("unknown transaction %q", name)}
	}
}

func policyFromArgs(op string, args []string) (*Policy, error) {
	if len(args) != 9 {
		return nil, badArgCount(op, 9, len(args))
	}
	return &Policy{
		ID:                   args[0],
		CreationDate:         args[1],
		DataSubject:          args[2],
		PersonalDataCategory: args[3],
		Processing:           args[4],
		Purpose:              args[5],
		Recipient:            args[6],
		Storage:              Storage{Location: args[7], Duration: args[8]},
	}, nil
}

func badArgCount(op string, want, got int) error {
	return &Error{Stage: StageDispatch, Op: op, Err: fmt.Errorf("expected %d arguments, got %d", want, got)}
}

func notExist(op, id string) error {
	return &Error{Stage: StageDispatch, Op: op, Err: fmt.Errorf("the policy %s does not exist", id)}
}

// seedPolicies is the initial set created by InitLedger.
func seedPolicies() []Policy {
	return []Policy{
		{
			ID:                   "policy0",
			CreationDate:         "2021-09-14",
			DataSubject:          "subject0",
			PersonalDataCategory: "demographic",
			Processing:           "collect",
			Purpose:              "service-provision",
			Recipient:            "controller",
			Storage:              Storage{Location: "EU", Duration: "1y"},
		},
		{
			ID:                   "policy1",
			CreationDate:         "2021-09-14",
			DataSubject:          "subject1",
			PersonalDataCategory: "contact",
			Processing:           "store",
			Purpose:              "billing",
			Recipient:            "processor",
			Storage:              Storage{Location: "EU", Duration: "6m"},
		},
	}
}
