// Package pamstack drives one-shot password verification through the host's
// Pluggable Authentication Modules stack.
//
// The native library is resolved with dlopen at run time, so a host without
// libpam is reported as a missing capability instead of failing at link time.
// All memory handed to libpam during the conversation is allocated with the
// C allocator, because libpam frees it with free().
package pamstack

import "log/slog"

// Style tags a single conversation prompt.
type Style int

// Conversation message styles, as defined by Linux-PAM.
const (
	PromptEchoOff Style = 1
	PromptEchoOn  Style = 2
	ErrorMsg      Style = 3
	TextInfo      Style = 4
)

// Status is a native PAM return code.
type Status int

// The subset of Linux-PAM return codes the driver interprets. Every other
// code falls into the "inconclusive" bucket.
const (
	Success             Status = 0
	ErrOpen             Status = 1
	ErrService          Status = 3
	ErrSystem           Status = 4
	ErrBuf              Status = 5
	ErrPerm             Status = 6
	ErrAuth             Status = 7
	ErrCredInsufficient Status = 8
	ErrAuthinfoUnavail  Status = 9
	ErrUserUnknown      Status = 10
	ErrMaxTries         Status = 11
	ErrConv             Status = 19
	ErrAbort            Status = 26
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case ErrOpen:
		return "open error"
	case ErrService:
		return "service error"
	case ErrSystem:
		return "system error"
	case ErrBuf:
		return "memory buffer error"
	case ErrPerm:
		return "permission denied"
	case ErrAuth:
		return "authentication failure"
	case ErrCredInsufficient:
		return "insufficient credentials"
	case ErrAuthinfoUnavail:
		return "authentication information unavailable"
	case ErrUserUnknown:
		return "user unknown"
	case ErrMaxTries:
		return "maximum tries exceeded"
	case ErrConv:
		return "conversation error"
	case ErrAbort:
		return "aborted"
	default:
		return "unknown status"
	}
}

// Session is one open PAM transaction. Exactly one Close call must follow
// every session obtained from Runtime.Start, on every code path.
type Session interface {
	// Authenticate runs the service profile's authentication chain,
	// prompting through the conversation callback.
	Authenticate() Status

	// AccountValid runs the account management chain (expiry, lockout
	// policy and similar).
	AccountValid() Status

	// Close ends the transaction. The last status obtained from the
	// session must be passed through, as pam_end requires.
	Close(last Status) error
}

// Runtime starts PAM transactions. The production implementation binds the
// host libpam; tests substitute an in-memory fake.
type Runtime interface {
	// Available reports whether the native library could be loaded.
	// Checked once; a false value means the whole PAM strategy is absent.
	Available() bool

	// Start opens a transaction for the given service profile with a
	// conversation callback that answers credential prompts with secret.
	// On a non-Success status no session is returned and nothing needs
	// closing.
	Start(service, username string, secret []byte) (Session, Status)
}

// Result classifies one attempt. Indeterminate permits trying another
// service profile or verification strategy; the other two are terminal.
type Result int

const (
	Indeterminate Result = iota
	Authenticated
	Rejected
)

func (r Result) String() string {
	switch r {
	case Authenticated:
		return "authenticated"
	case Rejected:
		return "rejected"
	default:
		return "indeterminate"
	}
}

// Attempt runs a single authentication attempt against one service profile.
//
// A successful start is always paired with exactly one Close, using the last
// status obtained. An account-check failure never downgrades a successful
// authentication: modules reject accounts for policy reasons (expired
// passwords, login-time restrictions) that say nothing about whether the
// password was right. Close failures cannot change a verdict already
// reached and are only logged.
func Attempt(rt Runtime, service, username string, secret []byte) Result {
	sess, status := rt.Start(service, username, secret)
	if status != Success || sess == nil {
		slog.Debug("pam start failed", "service", service, "status", status.String())
		return Indeterminate
	}

	last := status
	defer func() {
		if err := sess.Close(last); err != nil {
			slog.Debug("pam end failed", "service", service, "error", err)
		}
	}()

	last = sess.Authenticate()
	slog.Debug("pam authenticate", "service", service, "status", last.String())

	switch last {
	case Success:
		if st := sess.AccountValid(); st != Success {
			slog.Debug("pam account check failed", "service", service, "status", st.String())
		}
		return Authenticated
	case ErrAuth, ErrUserUnknown, ErrMaxTries:
		// The profile is valid and rendered a verdict on the
		// credentials; trying further profiles would be pointless.
		return Rejected
	default:
		// Misconfigured service, unloadable module, unreadable
		// configuration: this profile cannot decide.
		return Indeterminate
	}
}
