package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"go.trai.ch/zerr"
)

// Handler executes one unit of work inside a worker process.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// Serve runs the worker side of the wire protocol: it reads requests from r,
// executes them with the handler, and writes correlated responses to w. It
// returns when the input stream closes (the coordinator released the worker)
// or the context is cancelled. The embedding worker binary calls Serve on
// its stdin/stdout.
func Serve(ctx context.Context, r io.Reader, w io.Writer, handle Handler) error {
	scanner := newProtocolScanner(r)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req workRequest
		if err := json.Unmarshal(line, &req); err != nil {
			return zerr.Wrap(err, "malformed work request")
		}

		resp := workResponse{ID: req.ID}
		value, err := handle(ctx, req.Payload)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Value = value
		}

		if err := enc.Encode(resp); err != nil {
			return zerr.Wrap(err, "failed to write work response")
		}
	}
	return scanner.Err()
}
