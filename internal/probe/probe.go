// Package probe verifies a secret indirectly, by asking a
// privilege-escalation command to become the target user and run a no-op.
// The command's exit status is the verdict; the secret travels only on the
// command's stdin, never on argv or in the environment.
package probe

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"time"
)

// Probe command modes.
const (
	ModeSu   = "su"
	ModeSudo = "sudo"
)

// DefaultTimeout bounds one probe run. A stalled command is killed and the
// run reported as inconclusive.
const DefaultTimeout = 5 * time.Second

// ErrTimeout means the command did not finish within the probe's bound.
var ErrTimeout = errors.New("probe: timed out")

// Probe runs one verification command per call.
type Probe struct {
	argv    func(username string) []string
	env     []string
	timeout time.Duration
}

// New builds a probe for the given mode. Unknown modes fall back to su,
// which is the most widely available of the two.
func New(mode string, timeout time.Duration) *Probe {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	switch mode {
	case ModeSudo:
		return &Probe{
			argv: func(username string) []string {
				return []string{"sudo", "-S", "-u", username, "-k", "true"}
			},
			// Makes sure sudo never falls back to an askpass
			// helper and blocks on it.
			env:     append(os.Environ(), "SUDO_ASKPASS=/bin/false"),
			timeout: timeout,
		}
	default:
		return &Probe{
			argv: func(username string) []string {
				return []string{"su", "-c", "true", username}
			},
			timeout: timeout,
		}
	}
}

// NewCommand builds a probe around a fixed argv, ignoring the username.
// Used by tests to substitute the escalation command.
func NewCommand(argv []string, timeout time.Duration) *Probe {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Probe{
		argv:    func(string) []string { return argv },
		timeout: timeout,
	}
}

// Available reports whether the probe command exists on PATH.
func (p *Probe) Available() bool {
	_, err := exec.LookPath(p.argv("")[0])
	return err == nil
}

// Run feeds the secret to the command's stdin and waits for it, bounded by
// the probe's timeout. A nil error with ok=true is a conclusive acceptance,
// with ok=false a conclusive rejection. A non-nil error (launch failure,
// timeout) means the probe could not decide.
func (p *Probe) Run(username string, secret []byte) (ok bool, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	argv := p.argv(username)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if p.env != nil {
		cmd.Env = p.env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return false, err
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return false, err
	}

	stdin.Write(secret)
	io.WriteString(stdin, "\n")
	stdin.Close()

	err = cmd.Wait()
	if ctx.Err() == context.DeadlineExceeded {
		return false, ErrTimeout
	}
	if err == nil {
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}
