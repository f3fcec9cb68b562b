package driver

import "io"

// ErrReadCancelled reports a read interrupted through the cancel channel,
// wrapping the interrupt cause.
type ErrReadCancelled struct {
	cause error
}

func (e ErrReadCancelled) Error() string { return "read cancelled" }
func (e ErrReadCancelled) Unwrap() error { return e.cause }

// CancelableReader wraps a blocking reader so a stuck Read can be
// abandoned through the cancel channel. The inner read goroutine keeps the
// underlying reader; after cancellation it is left behind and dies with
// the process.
type CancelableReader struct {
	cancel  <-chan error
	data    chan []byte
	pending []byte
	err     error
	r       io.Reader
}

func (c *CancelableReader) begin() {
	buf := make([]byte, 1024)
	for {
		n, err := c.r.Read(buf)
		if n > 0 {
			tmp := make([]byte, n)
			copy(tmp, buf[:n])
			c.data <- tmp
		}
		if err != nil {
			c.err = err
			close(c.data)
			return
		}
	}
}

func (c *CancelableReader) Read(p []byte) (int, error) {
	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}
	select {
	case err := <-c.cancel:
		return 0, ErrReadCancelled{cause: err}
	case d, ok := <-c.data:
		if !ok {
			return 0, c.err
		}
		n := copy(p, d)
		c.pending = d[n:]
		return n, nil
	}
}

// NewCancelableReader starts reading from r immediately; sending on cancel
// unblocks the next (or current) Read with ErrReadCancelled.
func NewCancelableReader(cancel <-chan error, r io.Reader) *CancelableReader {
	c := &CancelableReader{
		cancel: cancel,
		r:      r,
		data:   make(chan []byte),
	}
	go c.begin()
	return c
}
