package worker

import (
	"bufio"
	"encoding/json"
	"io"
)

// The worker wire protocol is newline-delimited JSON over the worker
// process's stdin/stdout: one request object per line in, one response
// object per line out, correlated by id. All communication is explicit
// message passing; workers share no memory with the coordinator.

// maxMessageSize bounds a single protocol line.
const maxMessageSize = 16 << 20

type workRequest struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type workResponse struct {
	ID    string          `json:"id"`
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
}

func newProtocolScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	return scanner
}
