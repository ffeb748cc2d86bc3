// Package verify decides whether a secret belongs to a named local account.
//
// Verification strategies are tried in a fixed order; each renders a
// tri-state outcome. Authenticated and Rejected are terminal for the whole
// run. Indeterminate means the strategy could not decide (missing library,
// unreadable store, timed-out command) and the next strategy is consulted.
package verify

import (
	"log/slog"
	"regexp"

	"github.com/RisPNG/stealth-lock/internal/config"
	"github.com/RisPNG/stealth-lock/internal/pamstack"
	"github.com/RisPNG/stealth-lock/internal/probe"
)

// Outcome is the tri-state verdict of a verification.
type Outcome int

const (
	Indeterminate Outcome = iota
	Authenticated
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Authenticated:
		return "authenticated"
	case Rejected:
		return "rejected"
	default:
		return "indeterminate"
	}
}

// Result pairs an outcome with a diagnostic reason. The reason is advisory
// only and never contains secret material.
type Result struct {
	Outcome Outcome
	Reason  string
}

// Credential is the username/secret pair under verification. The secret is
// held read-only for the duration of one Verify call and never logged.
type Credential struct {
	Username string
	Secret   []byte
}

// Strategy is one verification backend.
type Strategy interface {
	Name() string

	// Available reports whether the backend can run at all. Checked once
	// per run; an unavailable backend is skipped silently.
	Available() bool

	Verify(cred Credential) Result
}

// usernameRegex validates usernames before they reach any external command.
// Only allows alphanumeric characters, underscores, and hyphens; must start
// with a letter or underscore, max 32 characters.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]{0,31}$`)

func isValidUsername(username string) bool {
	if username == "" || len(username) > 32 {
		return false
	}
	return usernameRegex.MatchString(username)
}

// Verifier runs the ordered strategy list.
type Verifier struct {
	strategies []Strategy
}

// New builds the production verifier: the native PAM stack over the
// configured service profiles, then shadow-hash comparison, then the
// privilege-escalation probe.
func New(cfg *config.Config) *Verifier {
	return NewWithStrategies(
		NewPAMStrategy(pamstack.NewNativeRuntime(), cfg.ServiceProfiles),
		NewShadowStrategy(cfg.ShadowFile),
		NewProbeStrategy(probe.New(cfg.ProbeMode, cfg.ProbeTimeout())),
	)
}

// NewWithStrategies builds a verifier over an explicit strategy list.
func NewWithStrategies(strategies ...Strategy) *Verifier {
	return &Verifier{strategies: strategies}
}

// Verify runs the strategies in order and stops at the first conclusive
// result. An empty secret or a malformed username never reaches a backend.
// When every strategy is unavailable or inconclusive, the result is an
// Indeterminate that asserts nothing about the credential's validity.
func (v *Verifier) Verify(cred Credential) Result {
	if len(cred.Secret) == 0 {
		return Result{Rejected, "no password provided"}
	}
	if !isValidUsername(cred.Username) {
		return Result{Rejected, "invalid username format"}
	}

	for _, s := range v.strategies {
		if !s.Available() {
			slog.Debug("strategy unavailable", "strategy", s.Name())
			continue
		}
		res := s.Verify(cred)
		slog.Debug("strategy result", "strategy", s.Name(), "outcome", res.Outcome.String(), "reason", res.Reason)
		if res.Outcome != Indeterminate {
			return res
		}
	}

	return Result{Indeterminate, "no authentication method available"}
}
