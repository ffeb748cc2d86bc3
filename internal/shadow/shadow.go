// Package shadow verifies a secret against the system shadow store by
// recomputing the stored hash with its own algorithm parameters.
package shadow

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/tredoe/osutil/user/crypt"

	_ "github.com/tredoe/osutil/user/crypt/apr1_crypt"
	_ "github.com/tredoe/osutil/user/crypt/md5_crypt"
	_ "github.com/tredoe/osutil/user/crypt/sha256_crypt"
	_ "github.com/tredoe/osutil/user/crypt/sha512_crypt"
)

// DefaultFile is the system shadow store.
const DefaultFile = "/etc/shadow"

var (
	// ErrNoEntry means the store was readable but holds no entry for the
	// user. Kept distinct from ErrPermission: the operational fix differs.
	ErrNoEntry = errors.New("shadow: no entry for user")

	// ErrPermission means the store could not be read at all. Reading
	// shadow is a privilege; lacking it says nothing about the secret.
	ErrPermission = errors.New("shadow: store not readable")

	// ErrUnsupportedHash means the stored hash uses an algorithm this
	// verifier cannot recompute (yescrypt, for instance).
	ErrUnsupportedHash = errors.New("shadow: unsupported hash algorithm")
)

// Entry is one shadow record, reduced to what verification needs.
type Entry struct {
	Name string
	Hash string
}

// Lookup finds the entry for username in the shadow file at path.
func Lookup(path, username string) (*Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, ErrPermission
		}
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, ":", 3)
		if len(fields) < 2 {
			continue
		}
		if fields[0] == username {
			return &Entry{Name: fields[0], Hash: fields[1]}, nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return nil, ErrNoEntry
}

// Locked reports whether the entry carries a disabled-account marker. A
// locked account is a conclusive rejection; the hash is never compared.
func (e *Entry) Locked() bool {
	return strings.HasPrefix(e.Hash, "!") || strings.HasPrefix(e.Hash, "*")
}

var supportedPrefixes = []string{"$1$", "$apr1$", "$5$", "$6$"}

// Match recomputes the stored hash from secret using the hash's own
// algorithm and salt parameters and compares for exact equality.
func (e *Entry) Match(secret []byte) (bool, error) {
	supported := false
	for _, prefix := range supportedPrefixes {
		if strings.HasPrefix(e.Hash, prefix) {
			supported = true
			break
		}
	}
	if !supported {
		return false, ErrUnsupportedHash
	}

	c := crypt.NewFromHash(e.Hash)
	err := c.Verify(e.Hash, secret)
	if errors.Is(err, crypt.ErrKeyMismatch) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
