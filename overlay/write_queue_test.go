package overlay

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recordingWriter captures every write and tracks how many writes are in
// flight at once.
type recordingWriter struct {
	mu     sync.Mutex
	writes [][]byte

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	delay time.Duration
	gate  chan struct{} // if non-nil, each write blocks until a receive
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	n := w.inFlight.Add(1)
	for {
		max := w.maxInFlight.Load()
		if n <= max || w.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}
	if w.gate != nil {
		<-w.gate
	}
	if w.delay > 0 {
		time.Sleep(w.delay)
	}

	w.mu.Lock()
	w.writes = append(w.writes, append([]byte(nil), p...))
	w.mu.Unlock()

	w.inFlight.Add(-1)
	return len(p), nil
}

func (w *recordingWriter) snapshot() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([][]byte, len(w.writes))
	copy(out, w.writes)
	return out
}

// failingWriter fails every write.
type failingWriter struct {
	calls atomic.Int32
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls.Add(1)
	return 0, errors.New("broken pipe")
}

func noopBefore()   {}
func noopWrite(int) {}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

// --- FIFO ordering ---

func TestWriteQueue_FIFO(t *testing.T) {
	w := &recordingWriter{delay: time.Millisecond}
	q := newWriteQueue(w, noopBefore, noopWrite, func(error) {})

	a, b, c := []byte("frame-a"), []byte("frame-b"), []byte("frame-c")
	for _, f := range [][]byte{a, b, c} {
		if err := q.enqueue(f); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	waitFor(t, func() bool { return len(w.snapshot()) == 3 }, "timeout waiting for drain")

	got := w.snapshot()
	for i, want := range [][]byte{a, b, c} {
		if !bytes.Equal(got[i], want) {
			t.Fatalf("write %d = %q, want %q", i, got[i], want)
		}
	}
	if w.maxInFlight.Load() != 1 {
		t.Fatalf("max writes in flight = %d, want 1", w.maxInFlight.Load())
	}
}

func TestWriteQueue_SingleFlightUnderConcurrentEnqueue(t *testing.T) {
	w := &recordingWriter{}
	q := newWriteQueue(w, noopBefore, noopWrite, func(error) {})

	const goroutines = 8
	const perG = 25
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				frame := []byte{byte(i), byte(j)}
				if err := q.enqueue(frame); err != nil {
					t.Errorf("enqueue: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	waitFor(t, func() bool { return len(w.snapshot()) == goroutines*perG }, "timeout waiting for drain")

	if w.maxInFlight.Load() != 1 {
		t.Fatalf("max writes in flight = %d, want 1", w.maxInFlight.Load())
	}
}

// --- Deferred second frame (scenario: X enqueued, Y before X completes) ---

func TestWriteQueue_SecondFrameWaitsForFirst(t *testing.T) {
	w := &recordingWriter{gate: make(chan struct{})}
	q := newWriteQueue(w, noopBefore, noopWrite, func(error) {})

	x := bytes.Repeat([]byte{'x'}, 10)
	y := bytes.Repeat([]byte{'y'}, 20)

	if err := q.enqueue(x); err != nil {
		t.Fatalf("enqueue x: %v", err)
	}
	waitFor(t, func() bool { return w.inFlight.Load() == 1 }, "x never started")

	// Enqueue y while x's write is still blocked.
	if err := q.enqueue(y); err != nil {
		t.Fatalf("enqueue y: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if got := w.inFlight.Load(); got != 1 {
		t.Fatalf("writes in flight = %d while x pending, want 1", got)
	}

	w.gate <- struct{}{} // complete x
	w.gate <- struct{}{} // complete y
	waitFor(t, func() bool { return len(w.snapshot()) == 2 }, "timeout waiting for drain")

	got := w.snapshot()
	if !bytes.Equal(got[0], x) || !bytes.Equal(got[1], y) {
		t.Fatal("frames written out of order")
	}
	if w.maxInFlight.Load() != 1 {
		t.Fatalf("max writes in flight = %d, want 1", w.maxInFlight.Load())
	}
}

// --- Error handling ---

func TestWriteQueue_ErrorStopsDraining(t *testing.T) {
	w := &failingWriter{}
	var errCount atomic.Int32
	q := newWriteQueue(w, noopBefore, noopWrite, func(error) { errCount.Add(1) })

	if err := q.enqueue([]byte("a")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.enqueue([]byte("b")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	waitFor(t, func() bool { return errCount.Load() == 1 }, "error callback never fired")

	// The failed frame was attempted once; draining stopped afterwards.
	time.Sleep(20 * time.Millisecond)
	if got := w.calls.Load(); got != 1 {
		t.Fatalf("write attempts = %d, want 1 (no draining after error)", got)
	}
	if got := errCount.Load(); got != 1 {
		t.Fatalf("error callbacks = %d, want 1", got)
	}
}

func TestWriteQueue_EnqueueAfterClose(t *testing.T) {
	w := &recordingWriter{}
	q := newWriteQueue(w, noopBefore, noopWrite, func(error) {})
	q.close()

	if err := q.enqueue([]byte("late")); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
	if q.len() != 0 {
		t.Fatalf("queue length = %d, want 0", q.len())
	}
}
