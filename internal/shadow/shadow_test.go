package shadow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// Reference vector from the public SHA-crypt specification.
const (
	sha512Hash     = "$6$saltstring$svn8UoSVapNtMuq1ukKS4tPQd8iKwSMHWjl/O817G3uBnIFNjnQJuesI68u4OTLiBFdcbYEdFCoEOfaS35inz1"
	sha512Password = "Hello world!"
)

func writeShadow(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shadow")
	if err := os.WriteFile(path, []byte(lines), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLookup(t *testing.T) {
	path := writeShadow(t, "root:"+sha512Hash+":19000:0:99999:7:::\n"+
		"daemon:*:19000:0:99999:7:::\n"+
		"locked:!"+sha512Hash+":19000:0:99999:7:::\n")

	entry, err := Lookup(path, "root")
	if err != nil {
		t.Fatalf("expected entry for root, got error: %v", err)
	}
	if entry.Hash != sha512Hash {
		t.Fatalf("unexpected hash: %q", entry.Hash)
	}

	if _, err := Lookup(path, "nobody-here"); !errors.Is(err, ErrNoEntry) {
		t.Fatalf("expected ErrNoEntry, got: %v", err)
	}
}

func TestLookupMissingFile(t *testing.T) {
	_, err := Lookup(filepath.Join(t.TempDir(), "does-not-exist"), "root")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if errors.Is(err, ErrNoEntry) || errors.Is(err, ErrPermission) {
		t.Fatalf("a missing file is neither a missing entry nor a permission problem: %v", err)
	}
}

func TestLocked(t *testing.T) {
	cases := []struct {
		hash   string
		locked bool
	}{
		{"!" + sha512Hash, true},
		{"!!", true},
		{"*", true},
		{sha512Hash, false},
	}
	for _, c := range cases {
		e := &Entry{Name: "u", Hash: c.hash}
		if e.Locked() != c.locked {
			t.Errorf("hash %q: expected locked=%v", c.hash, c.locked)
		}
	}
}

func TestMatch(t *testing.T) {
	e := &Entry{Name: "u", Hash: sha512Hash}

	ok, err := e.Match([]byte(sha512Password))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected the reference password to match")
	}

	ok, err = e.Match([]byte("wrong password"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("a wrong password must not match")
	}
}

func TestMatchUnsupportedAlgorithm(t *testing.T) {
	for _, hash := range []string{"$y$j9T$salt$hash", "", "plaintext"} {
		e := &Entry{Name: "u", Hash: hash}
		if _, err := e.Match([]byte("pw")); !errors.Is(err, ErrUnsupportedHash) {
			t.Errorf("hash %q: expected ErrUnsupportedHash, got: %v", hash, err)
		}
	}
}
