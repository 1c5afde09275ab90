package ledger

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	withOp := &Error{Stage: StageDispatch, Op: "ReadPolicy", Err: errors.New("the policy p1 does not exist")}
	if got := withOp.Error(); !strings.Contains(got, "ReadPolicy") || !strings.Contains(got, "does not exist") {
		t.Errorf("Error() = %q, want transaction name and cause", got)
	}

	withoutOp := &Error{Stage: StageConnect, Err: errors.New("connection refused")}
	if got := withoutOp.Error(); !strings.Contains(got, "connect") {
		t.Errorf("Error() = %q, want stage name", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := &Error{Stage: StageResolve, Err: ErrIdentityNotFound}
	if !errors.Is(err, ErrIdentityNotFound) {
		t.Error("errors.Is should see through the stage wrapper")
	}
}

func TestIsInfrastructure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"resolve stage", &Error{Stage: StageResolve, Err: ErrIdentityNotFound}, true},
		{"connect stage", &Error{Stage: StageConnect, Err: errors.New("dial tcp: refused")}, true},
		{"bind stage", &Error{Stage: StageBind, Err: ErrSessionClosed}, false},
		{"dispatch stage", &Error{Stage: StageDispatch, Op: "CreatePolicy", Err: errors.New("already exists")}, false},
		{"wrapped dispatch stage", &Error{Stage: StageDispatch, Err: &Error{Stage: StageDispatch, Err: errors.New("x")}}, false},
		{"unrecognized error", errors.New("something unexpected"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInfrastructure(tt.err); got != tt.want {
				t.Errorf("IsInfrastructure() = %t, want %t", got, tt.want)
			}
		})
	}
}
