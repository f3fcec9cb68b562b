// Package channel provides the bounded FIFO that connects pipeline stages.
//
// A Channel stores independent copies of the lines put into it, so a
// producer's buffer lifetime never couples to consumer progress. Blocking
// is implemented with manual-reset gates rather than a native chan so that
// the finished signal stays orthogonal to emptiness: a channel can be
// finished while still holding lines, and empty without being finished.
package channel

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/itayaharoni2/analyzer/gate"
)

var (
	// ErrInvalidCapacity is returned by New for capacities below 1.
	ErrInvalidCapacity = errors.New("channel capacity must be at least 1")

	// ErrClosed is returned by Put and Get once the channel has been closed.
	ErrClosed = errors.New("channel closed")
)

// Channel is a bounded FIFO ring of owned strings. Each Channel carries its
// own structural mutex; the gates below carry their own internal locks.
//
// Live elements occupy [head, head+count) mod cap(buf). The structural
// mutex is never held across a gate wait.
type Channel struct {
	mu    sync.Mutex
	buf   []string
	count int
	head  int
	tail  int

	notFull  *gate.Gate
	notEmpty *gate.Gate
	finished *gate.Gate

	closed bool
}

// New allocates a channel with the given fixed capacity.
func New(capacity int) (*Channel, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &Channel{
		buf:      make([]string, capacity),
		notFull:  gate.New(),
		notEmpty: gate.New(),
		finished: gate.New(),
	}, nil
}

// Cap returns the fixed capacity.
func (c *Channel) Cap() int { return len(c.buf) }

// Len returns the number of buffered lines.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Put copies item into the channel, blocking while it is full.
//
// The not-full gate is reset only here, by the producer about to wait,
// while still holding the structural mutex; together with broadcast-on-
// signal and the re-check loop this cannot lose a wakeup.
func (c *Channel) Put(item string) error {
	c.mu.Lock()
	for {
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		if c.count < len(c.buf) {
			break
		}
		c.notFull.Reset()
		c.mu.Unlock()
		c.notFull.Wait()
		c.mu.Lock()
	}

	// The channel owns its elements: clone so the stored line shares no
	// backing memory with the caller's argument.
	c.buf[c.tail] = strings.Clone(item)
	c.tail = (c.tail + 1) % len(c.buf)
	c.count++

	c.notEmpty.Signal()
	c.mu.Unlock()
	return nil
}

// Get removes and returns the oldest line, blocking while the channel is
// empty. Ownership of the returned string transfers to the caller.
func (c *Channel) Get() (string, error) {
	c.mu.Lock()
	for {
		if c.closed {
			c.mu.Unlock()
			return "", ErrClosed
		}
		if c.count > 0 {
			item := c.buf[c.head]
			c.buf[c.head] = ""
			c.head = (c.head + 1) % len(c.buf)
			c.count--

			c.notFull.Signal()
			c.mu.Unlock()
			return item, nil
		}
		c.notEmpty.Reset()
		c.mu.Unlock()
		c.notEmpty.Wait()
		c.mu.Lock()
	}
}

// SignalFinished marks the stream through this channel as finished.
// Idempotent. Orthogonal to emptiness.
func (c *Channel) SignalFinished() {
	c.finished.Signal()
}

// WaitFinished blocks until SignalFinished has been called.
func (c *Channel) WaitFinished() {
	c.finished.Wait()
}

// Finished reports whether the finished gate has been signaled.
func (c *Channel) Finished() bool {
	return c.finished.Signaled()
}

// Close releases buffered lines and unblocks any producer or consumer
// stuck in Put or Get; they return ErrClosed. Expected to be called once,
// after the consumer has exited.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for i := range c.buf {
		c.buf[i] = ""
	}
	c.count, c.head, c.tail = 0, 0, 0
	c.mu.Unlock()

	c.notFull.Signal()
	c.notEmpty.Signal()
}
