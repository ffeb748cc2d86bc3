package verify

import (
	"bufio"
	"bytes"
	"io"
)

// ReadSecretLine reads one line from r and strips the trailing line
// terminator (a final "\n", and a "\r" before it if present). The remaining
// bytes are treated as opaque: embedded control bytes pass through
// unchanged. An empty result means no secret was provided.
func ReadSecretLine(r io.Reader) ([]byte, error) {
	line, err := bufio.NewReader(r).ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line, nil
}
