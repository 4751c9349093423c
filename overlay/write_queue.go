package overlay

import (
	"errors"
	"io"
	"sync"
)

// ErrQueueClosed is returned when enqueueing on a closed write queue.
var ErrQueueClosed = errors.New("overlay: write queue closed")

// writeQueue serializes outbound frames onto a stream. Frames are written
// strictly in enqueue order with at most one write outstanding at any time.
// A frame stays at the front of the queue, untouched, until its write
// completes; only then is it removed and the next one started.
type writeQueue struct {
	w io.Writer

	// beforeWrite runs just before each write is issued (last-write
	// timestamp). onWrite runs after each successful write with the number
	// of bytes sent. onError runs once when a write fails; the queue stops
	// draining afterwards.
	beforeWrite func()
	onWrite     func(n int)
	onError     func(err error)

	mu      sync.Mutex
	frames  [][]byte
	sending bool
	closed  bool
}

func newWriteQueue(w io.Writer, beforeWrite func(), onWrite func(int), onError func(error)) *writeQueue {
	return &writeQueue{
		w:           w,
		beforeWrite: beforeWrite,
		onWrite:     onWrite,
		onError:     onError,
	}
}

// enqueue appends a frame to the tail of the queue. If no sender is active
// (the queue was empty), one is started.
func (q *writeQueue) enqueue(frame []byte) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.frames = append(q.frames, frame)
	start := !q.sending
	if start {
		q.sending = true
	}
	q.mu.Unlock()

	if start {
		go q.send()
	}
	return nil
}

// send drains the queue one frame at a time. The front frame is peeked, not
// popped: its backing bytes must remain valid for the full duration of the
// write, and removal happens only after the write outcome is observed.
func (q *writeQueue) send() {
	for {
		q.mu.Lock()
		if q.closed || len(q.frames) == 0 {
			q.sending = false
			q.mu.Unlock()
			return
		}
		front := q.frames[0]
		q.mu.Unlock()

		q.beforeWrite()
		if _, err := q.w.Write(front); err != nil {
			q.mu.Lock()
			q.sending = false
			q.mu.Unlock()
			q.onError(err)
			return
		}
		q.onWrite(len(front))

		q.mu.Lock()
		// close may have discarded the queue while the write was in
		// flight; only pop if the frame is still at the front.
		if len(q.frames) > 0 {
			q.frames[0] = nil // release the sent frame
			q.frames = q.frames[1:]
		}
		q.mu.Unlock()
	}
}

// close discards all pending frames and rejects further enqueues. A write
// already in flight is aborted by closing the underlying stream, not here.
func (q *writeQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.frames = nil
	q.mu.Unlock()
}

// len reports the number of frames waiting to be written.
func (q *writeQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}
