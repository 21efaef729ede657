package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/engine/worker"
)

// The test binary doubles as the worker process: when the marker variable is
// set, it speaks the work protocol on stdin/stdout instead of running tests.
const workerModeEnv = "KILN_TEST_WORKER_MODE"

func TestMain(m *testing.M) {
	if os.Getenv(workerModeEnv) == "1" {
		runTestWorker()
		return
	}
	os.Exit(m.Run())
}

type testCommand struct {
	Op     string `json:"op"`
	Value  string `json:"value,omitempty"`
	Millis int    `json:"millis,omitempty"`
}

type testReply struct {
	Echo string `json:"echo,omitempty"`
	PID  int    `json:"pid"`
}

func runTestWorker() {
	err := worker.Serve(context.Background(), os.Stdin, os.Stdout, func(_ context.Context, payload []byte) ([]byte, error) {
		var cmd testCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return nil, err
		}
		switch cmd.Op {
		case "echo":
			return json.Marshal(testReply{Echo: cmd.Value, PID: os.Getpid()})
		case "fail":
			return nil, errors.New("compile failed: " + cmd.Value)
		case "sleep":
			time.Sleep(time.Duration(cmd.Millis) * time.Millisecond)
			return json.Marshal(testReply{PID: os.Getpid()})
		case "crash":
			os.Exit(3)
		}
		return nil, errors.New("unknown op " + cmd.Op)
	})
	if err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

type testLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *testLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, msg)
}

func (l *testLogger) Info(msg string) { l.record(msg) }
func (l *testLogger) Warn(msg string) { l.record(msg) }
func (l *testLogger) Error(err error) { l.record(err.Error()) }

func newTestPool(t *testing.T, opts worker.Options) *worker.Pool {
	t.Helper()
	opts.Command = []string{os.Args[0]}
	opts.Env = []string{workerModeEnv + "=1"}

	pool, err := worker.NewPool(opts, &testLogger{})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	t.Cleanup(pool.Shutdown)
	return pool
}

func submit(t *testing.T, pool *worker.Pool, id, fingerprint string, cmd testCommand) domain.WorkResult {
	t.Helper()
	payload, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return pool.Submit(context.Background(), domain.WorkItem{
		ID:          id,
		Fingerprint: fingerprint,
		Payload:     payload,
	})
}

func decodeReply(t *testing.T, result domain.WorkResult) testReply {
	t.Helper()
	if result.Err != nil {
		t.Fatalf("unexpected result error: %v", result.Err)
	}
	var reply testReply
	if err := json.Unmarshal(result.Value, &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return reply
}

func TestPool_Echo(t *testing.T) {
	pool := newTestPool(t, worker.Options{Size: 1, Timeout: 30 * time.Second})

	result := submit(t, pool, "item-1", "fp", testCommand{Op: "echo", Value: "hello"})
	if result.ID != "item-1" {
		t.Errorf("result id = %s", result.ID)
	}
	if reply := decodeReply(t, result); reply.Echo != "hello" {
		t.Errorf("echo = %q", reply.Echo)
	}
}

func TestPool_FailureIsolation(t *testing.T) {
	pool := newTestPool(t, worker.Options{Size: 1, Timeout: 30 * time.Second})

	before := decodeReply(t, submit(t, pool, "item-1", "fp", testCommand{Op: "echo"}))

	failed := submit(t, pool, "item-2", "fp", testCommand{Op: "fail", Value: "widget.src"})
	if failed.Err == nil {
		t.Fatal("expected a failed result")
	}
	if !strings.Contains(failed.Err.Error(), "compile failed: widget.src") {
		t.Errorf("err = %v", failed.Err)
	}

	// A worker-reported failure must not take the worker down.
	after := decodeReply(t, submit(t, pool, "item-3", "fp", testCommand{Op: "echo"}))
	if after.PID != before.PID {
		t.Errorf("worker was replaced after a reported failure: pid %d -> %d", before.PID, after.PID)
	}
}

func TestPool_CrashRecovery(t *testing.T) {
	pool := newTestPool(t, worker.Options{Size: 1, Timeout: 30 * time.Second})

	crashed := submit(t, pool, "item-1", "fp", testCommand{Op: "crash"})
	if !errors.Is(crashed.Err, domain.ErrWorkerCrashed) {
		t.Fatalf("err = %v, want ErrWorkerCrashed", crashed.Err)
	}
	if crashed.ID != "item-1" {
		t.Errorf("crash result id = %s", crashed.ID)
	}

	// The next submission spawns a fresh worker.
	reply := decodeReply(t, submit(t, pool, "item-2", "fp", testCommand{Op: "echo", Value: "back"}))
	if reply.Echo != "back" {
		t.Errorf("echo = %q", reply.Echo)
	}
}

func TestPool_Timeout(t *testing.T) {
	pool := newTestPool(t, worker.Options{Size: 1, Timeout: 300 * time.Millisecond})

	slow := submit(t, pool, "item-1", "fp", testCommand{Op: "sleep", Millis: 60_000})
	if !errors.Is(slow.Err, domain.ErrWorkerTimeout) {
		t.Fatalf("err = %v, want ErrWorkerTimeout", slow.Err)
	}

	reply := decodeReply(t, submit(t, pool, "item-2", "fp", testCommand{Op: "echo", Value: "alive"}))
	if reply.Echo != "alive" {
		t.Errorf("echo = %q", reply.Echo)
	}
}

func TestPool_QueueFull(t *testing.T) {
	pool := newTestPool(t, worker.Options{Size: 1, QueueDepth: 1, Timeout: 30 * time.Second})

	// Occupy the single worker and the single queue slot.
	var wg sync.WaitGroup
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = submit(t, pool, "slow-"+strconv.Itoa(i), "fp", testCommand{Op: "sleep", Millis: 2000})
		}()
	}
	time.Sleep(500 * time.Millisecond)

	rejected := submit(t, pool, "item-over", "fp", testCommand{Op: "echo"})
	if !errors.Is(rejected.Err, domain.ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", rejected.Err)
	}
	wg.Wait()
}

func TestPool_RecyclesOnFingerprintChange(t *testing.T) {
	pool := newTestPool(t, worker.Options{Size: 1, Timeout: 30 * time.Second})

	first := decodeReply(t, submit(t, pool, "item-1", "fp-a", testCommand{Op: "echo"}))
	second := decodeReply(t, submit(t, pool, "item-2", "fp-b", testCommand{Op: "echo"}))
	third := decodeReply(t, submit(t, pool, "item-3", "fp-b", testCommand{Op: "echo"}))

	if first.PID == second.PID {
		t.Error("a fingerprint change must recycle the worker")
	}
	if second.PID != third.PID {
		t.Error("a matching fingerprint must reuse the worker")
	}
}

func TestPool_RecyclesAfterServedCount(t *testing.T) {
	pool := newTestPool(t, worker.Options{Size: 1, RecycleAfter: 1, Timeout: 30 * time.Second})

	first := decodeReply(t, submit(t, pool, "item-1", "fp", testCommand{Op: "echo"}))
	second := decodeReply(t, submit(t, pool, "item-2", "fp", testCommand{Op: "echo"}))

	if first.PID == second.PID {
		t.Error("the worker must be recycled after serving its quota")
	}
}

func TestPool_Shutdown(t *testing.T) {
	pool := newTestPool(t, worker.Options{Size: 1, Timeout: 30 * time.Second})

	decodeReply(t, submit(t, pool, "item-1", "fp", testCommand{Op: "echo"}))
	pool.Shutdown()

	result := submit(t, pool, "item-2", "fp", testCommand{Op: "echo"})
	if !errors.Is(result.Err, domain.ErrPoolClosed) {
		t.Errorf("err = %v, want ErrPoolClosed", result.Err)
	}
}

func TestPool_ConcurrentSubmits(t *testing.T) {
	pool := newTestPool(t, worker.Options{Size: 2, QueueDepth: 16, Timeout: 30 * time.Second})

	var wg sync.WaitGroup
	results := make([]domain.WorkResult, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := "item-" + strconv.Itoa(i)
			results[i] = submit(t, pool, id, "fp", testCommand{Op: "echo", Value: id})
		}()
	}
	wg.Wait()

	// Exactly one correlated result per item, regardless of completion order.
	for i, result := range results {
		id := "item-" + strconv.Itoa(i)
		if result.ID != id {
			t.Fatalf("result %d carries id %s", i, result.ID)
		}
		if reply := decodeReply(t, result); reply.Echo != id {
			t.Errorf("item %s echoed %q", id, reply.Echo)
		}
	}
}

func TestNewPool_RequiresCommand(t *testing.T) {
	_, err := worker.NewPool(worker.Options{Size: 1}, &testLogger{})
	if err == nil {
		t.Fatal("expected an error for a missing worker command")
	}
}
