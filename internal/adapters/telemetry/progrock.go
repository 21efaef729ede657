package telemetry

import (
	"context"
	"fmt"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"

	"go.trai.ch/kiln/internal/core/ports"
)

var _ ports.Tracer = (*Recorder)(nil)

// Recorder implements ports.Tracer on top of a progrock recorder. Each span
// becomes a vertex on the tape, so interactive frontends can render per-unit
// compilation progress.
type Recorder struct {
	w   progrock.Writer
	rec *progrock.Recorder
}

// NewRecorder creates a Recorder with a default tape.
func NewRecorder() *Recorder {
	return NewRecorderWithWriter(progrock.NewTape())
}

// NewRecorderWithWriter creates a Recorder emitting to the given writer.
func NewRecorderWithWriter(w progrock.Writer) *Recorder {
	return &Recorder{
		w:   w,
		rec: progrock.NewRecorder(w),
	}
}

// Start records a new vertex named after the span.
func (r *Recorder) Start(ctx context.Context, name string, _ ...ports.SpanOption) (context.Context, ports.Span) {
	v := r.rec.Vertex(digest.FromString(name), name)
	return ctx, &vertexSpan{vertex: v}
}

// EmitPlan records the planned unit set as a single vertex.
func (r *Recorder) EmitPlan(_ context.Context, unitNames []string) {
	v := r.rec.Vertex(digest.FromString("plan"), "recompilation plan")
	for _, name := range unitNames {
		_, _ = fmt.Fprintln(v.Stdout(), name)
	}
	v.Done(nil)
}

// Close flushes and closes the recording session.
func (r *Recorder) Close() error {
	if c, ok := r.w.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// vertexSpan implements ports.Span wrapping *progrock.VertexRecorder.
type vertexSpan struct {
	vertex *progrock.VertexRecorder
	err    error
}

func (s *vertexSpan) Write(p []byte) (int, error) {
	return s.vertex.Stdout().Write(p)
}

// RecordError remembers the error; it is reported when the span ends.
func (s *vertexSpan) RecordError(err error) {
	s.err = err
}

// SetAttribute writes the attribute to the vertex output stream.
func (s *vertexSpan) SetAttribute(key string, value any) {
	_, _ = fmt.Fprintf(s.vertex.Stdout(), "%s=%v\n", key, value)
}

// End completes the vertex, carrying any recorded error.
func (s *vertexSpan) End() {
	s.vertex.Done(s.err)
}
