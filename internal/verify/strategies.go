package verify

import (
	"errors"
	"fmt"
	"os"

	"github.com/RisPNG/stealth-lock/internal/pamstack"
	"github.com/RisPNG/stealth-lock/internal/probe"
	"github.com/RisPNG/stealth-lock/internal/shadow"
)

// PAMStrategy tries each configured service profile through the native
// stack and stops at the first conclusive verdict. Only when every profile
// is inconclusive does the orchestrator move on.
type PAMStrategy struct {
	rt       pamstack.Runtime
	profiles []string
}

func NewPAMStrategy(rt pamstack.Runtime, profiles []string) *PAMStrategy {
	return &PAMStrategy{rt: rt, profiles: profiles}
}

func (s *PAMStrategy) Name() string { return "pam" }

func (s *PAMStrategy) Available() bool { return s.rt.Available() }

func (s *PAMStrategy) Verify(cred Credential) Result {
	for _, profile := range s.profiles {
		switch pamstack.Attempt(s.rt, profile, cred.Username, cred.Secret) {
		case pamstack.Authenticated:
			return Result{Authenticated, "pam service " + profile}
		case pamstack.Rejected:
			return Result{Rejected, "pam service " + profile}
		}
	}
	return Result{Indeterminate, "every pam service profile was inconclusive"}
}

// ShadowStrategy compares the secret against the account's stored hash.
type ShadowStrategy struct {
	path string
}

func NewShadowStrategy(path string) *ShadowStrategy {
	if path == "" {
		path = shadow.DefaultFile
	}
	return &ShadowStrategy{path: path}
}

func (s *ShadowStrategy) Name() string { return "shadow" }

func (s *ShadowStrategy) Available() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

func (s *ShadowStrategy) Verify(cred Credential) Result {
	entry, err := shadow.Lookup(s.path, cred.Username)
	switch {
	case errors.Is(err, shadow.ErrPermission):
		// Lacking the privilege to read the store says nothing about
		// the secret.
		return Result{Indeterminate, "shadow store not readable"}
	case errors.Is(err, shadow.ErrNoEntry):
		return Result{Indeterminate, "no shadow entry for user"}
	case err != nil:
		return Result{Indeterminate, fmt.Sprintf("shadow store: %v", err)}
	}

	if entry.Locked() {
		return Result{Rejected, "account is locked"}
	}

	ok, err := entry.Match(cred.Secret)
	if err != nil {
		return Result{Indeterminate, fmt.Sprintf("shadow hash: %v", err)}
	}
	if ok {
		return Result{Authenticated, "shadow hash match"}
	}
	return Result{Rejected, "shadow hash mismatch"}
}

// ProbeStrategy delegates to an external privilege-escalation command.
type ProbeStrategy struct {
	p *probe.Probe
}

func NewProbeStrategy(p *probe.Probe) *ProbeStrategy {
	return &ProbeStrategy{p: p}
}

func (s *ProbeStrategy) Name() string { return "probe" }

func (s *ProbeStrategy) Available() bool { return s.p.Available() }

func (s *ProbeStrategy) Verify(cred Credential) Result {
	ok, err := s.p.Run(cred.Username, cred.Secret)
	if err != nil {
		return Result{Indeterminate, fmt.Sprintf("probe: %v", err)}
	}
	if ok {
		return Result{Authenticated, "probe command accepted the secret"}
	}
	return Result{Rejected, "probe command rejected the secret"}
}
