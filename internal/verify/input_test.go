package verify

import (
	"bytes"
	"strings"
	"testing"
)

func TestReadSecretLine(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"hunter2\n", "hunter2"},
		{"hunter2\r\n", "hunter2"},
		{"hunter2", "hunter2"},
		{"\n", ""},
		{"", ""},
		{"pass word with spaces\n", "pass word with spaces"},
		// Embedded control bytes are opaque; only the terminator goes.
		{"a\x01b\x00c\n", "a\x01b\x00c"},
		// Only the final terminator is stripped.
		{"trailing\rcarriage\n", "trailing\rcarriage"},
	}

	for _, c := range cases {
		got, err := ReadSecretLine(strings.NewReader(c.in))
		if err != nil {
			t.Errorf("input %q: unexpected error: %v", c.in, err)
			continue
		}
		if !bytes.Equal(got, []byte(c.want)) {
			t.Errorf("input %q: got %q, want %q", c.in, got, c.want)
		}
	}
}

func TestReadSecretLineStopsAtFirstLine(t *testing.T) {
	got, err := ReadSecretLine(strings.NewReader("first\nsecond\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "first" {
		t.Fatalf("got %q, want %q", got, "first")
	}
}
