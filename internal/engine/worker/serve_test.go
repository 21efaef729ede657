package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"go.trai.ch/kiln/internal/engine/worker"
)

type wireResponse struct {
	ID    string          `json:"id"`
	Value json.RawMessage `json:"value"`
	Error string          `json:"error"`
}

func startServe(t *testing.T, handler worker.Handler) (*json.Encoder, *json.Decoder, chan error) {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	done := make(chan error, 1)
	go func() {
		done <- worker.Serve(context.Background(), inR, outW, handler)
	}()
	t.Cleanup(func() { _ = inW.Close() })

	return json.NewEncoder(inW), json.NewDecoder(outR), done
}

func TestServe_RoundTrip(t *testing.T) {
	enc, dec, _ := startServe(t, func(_ context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	})

	if err := enc.Encode(map[string]any{"id": "req-1", "payload": json.RawMessage(`{"x":1}`)}); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var resp wireResponse
	if err := dec.Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "req-1" {
		t.Errorf("id = %s, want req-1", resp.ID)
	}
	if string(resp.Value) != `{"x":1}` {
		t.Errorf("value = %s", resp.Value)
	}
	if resp.Error != "" {
		t.Errorf("unexpected error: %s", resp.Error)
	}
}

func TestServe_HandlerError(t *testing.T) {
	enc, dec, _ := startServe(t, func(context.Context, []byte) ([]byte, error) {
		return nil, errors.New("compilation failed")
	})

	if err := enc.Encode(map[string]any{"id": "req-1"}); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var resp wireResponse
	if err := dec.Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "compilation failed" {
		t.Errorf("error = %q", resp.Error)
	}
	if len(resp.Value) != 0 {
		t.Errorf("unexpected value alongside error: %s", resp.Value)
	}
}

func TestServe_MalformedRequest(t *testing.T) {
	inR, inW := io.Pipe()

	done := make(chan error, 1)
	go func() {
		done <- worker.Serve(context.Background(), inR, io.Discard, func(context.Context, []byte) ([]byte, error) {
			return nil, nil
		})
	}()

	if _, err := inW.Write([]byte("this is not json\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected an error for a malformed request")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve loop did not terminate")
	}
}

func TestServe_EndsOnClosedInput(t *testing.T) {
	inR, inW := io.Pipe()

	done := make(chan error, 1)
	go func() {
		done <- worker.Serve(context.Background(), inR, io.Discard, func(context.Context, []byte) ([]byte, error) {
			return nil, nil
		})
	}()

	_ = inW.Close()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, io.ErrClosedPipe) {
			t.Errorf("unexpected error on closed input: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve loop did not terminate")
	}
}
