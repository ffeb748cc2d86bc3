package pamstack

import (
	"errors"
	"testing"
)

// fakeSession records lifecycle calls so tests can assert strict start/end
// pairing.
type fakeSession struct {
	authStatus Status
	acctStatus Status
	closeErr   error

	authCalls  int
	acctCalls  int
	closeCalls int
	closedWith Status
}

func (s *fakeSession) Authenticate() Status {
	s.authCalls++
	return s.authStatus
}

func (s *fakeSession) AccountValid() Status {
	s.acctCalls++
	return s.acctStatus
}

func (s *fakeSession) Close(last Status) error {
	s.closeCalls++
	s.closedWith = last
	return s.closeErr
}

type fakeRuntime struct {
	startStatus Status
	session     *fakeSession
	startCalls  int
}

func (r *fakeRuntime) Available() bool { return true }

func (r *fakeRuntime) Start(service, username string, secret []byte) (Session, Status) {
	r.startCalls++
	if r.startStatus != Success {
		return nil, r.startStatus
	}
	return r.session, Success
}

func TestAttemptAuthenticated(t *testing.T) {
	sess := &fakeSession{authStatus: Success, acctStatus: Success}
	rt := &fakeRuntime{startStatus: Success, session: sess}

	got := Attempt(rt, "login", "alice", []byte("pw"))
	if got != Authenticated {
		t.Fatalf("expected Authenticated, got %v", got)
	}
	if sess.closeCalls != 1 {
		t.Fatalf("expected exactly one close, got %d", sess.closeCalls)
	}
	if sess.closedWith != Success {
		t.Fatalf("expected close with last status success, got %v", sess.closedWith)
	}
}

func TestAttemptConclusiveRejections(t *testing.T) {
	for _, status := range []Status{ErrAuth, ErrUserUnknown, ErrMaxTries} {
		sess := &fakeSession{authStatus: status}
		rt := &fakeRuntime{startStatus: Success, session: sess}

		got := Attempt(rt, "login", "alice", []byte("pw"))
		if got != Rejected {
			t.Errorf("status %v: expected Rejected, got %v", status, got)
		}
		if sess.acctCalls != 0 {
			t.Errorf("status %v: account check should not run after a failed authenticate", status)
		}
		if sess.closeCalls != 1 {
			t.Errorf("status %v: expected exactly one close, got %d", status, sess.closeCalls)
		}
		if sess.closedWith != status {
			t.Errorf("status %v: close must receive the last status, got %v", status, sess.closedWith)
		}
	}
}

func TestAttemptInconclusiveStatuses(t *testing.T) {
	for _, status := range []Status{ErrOpen, ErrService, ErrSystem, ErrPerm, ErrAuthinfoUnavail, ErrConv, ErrAbort} {
		sess := &fakeSession{authStatus: status}
		rt := &fakeRuntime{startStatus: Success, session: sess}

		if got := Attempt(rt, "login", "alice", []byte("pw")); got != Indeterminate {
			t.Errorf("status %v: expected Indeterminate, got %v", status, got)
		}
		if sess.closeCalls != 1 {
			t.Errorf("status %v: expected exactly one close, got %d", status, sess.closeCalls)
		}
	}
}

func TestAttemptStartFailureSkipsClose(t *testing.T) {
	sess := &fakeSession{}
	rt := &fakeRuntime{startStatus: ErrService, session: sess}

	if got := Attempt(rt, "login", "alice", []byte("pw")); got != Indeterminate {
		t.Fatalf("expected Indeterminate, got %v", got)
	}
	if sess.closeCalls != 0 {
		t.Fatalf("no handle existed, nothing should be closed; got %d closes", sess.closeCalls)
	}
}

func TestAttemptAccountCheckNeverDowngrades(t *testing.T) {
	sess := &fakeSession{authStatus: Success, acctStatus: ErrPerm}
	rt := &fakeRuntime{startStatus: Success, session: sess}

	if got := Attempt(rt, "login", "alice", []byte("pw")); got != Authenticated {
		t.Fatalf("account check result must not downgrade the outcome, got %v", got)
	}
	if sess.acctCalls != 1 {
		t.Fatalf("expected one account check, got %d", sess.acctCalls)
	}
}

func TestAttemptCloseErrorSwallowed(t *testing.T) {
	sess := &fakeSession{authStatus: ErrAuth, closeErr: errors.New("pam_end: system error")}
	rt := &fakeRuntime{startStatus: Success, session: sess}

	if got := Attempt(rt, "login", "alice", []byte("pw")); got != Rejected {
		t.Fatalf("close failure must not change the verdict, got %v", got)
	}
}

func TestStatusStrings(t *testing.T) {
	if Success.String() != "success" {
		t.Errorf("unexpected string for success: %q", Success.String())
	}
	if Status(99).String() != "unknown status" {
		t.Errorf("unexpected string for unknown code: %q", Status(99).String())
	}
}
