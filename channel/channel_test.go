package channel

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1, -100} {
		_, err := New(capacity)
		assert.ErrorIs(t, err, ErrInvalidCapacity, "capacity %d", capacity)
	}
}

func TestPutGetFIFO(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	lines := []string{"one", "two", "three", "", "  ", "five"}
	for _, l := range lines {
		require.NoError(t, c.Put(l))
	}
	assert.Equal(t, len(lines), c.Len())

	for _, want := range lines {
		got, err := c.Get()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 0, c.Len())
}

func TestRingWraparound(t *testing.T) {
	c, err := New(3)
	require.NoError(t, err)

	// Drive head and tail around the ring several times.
	next := 0
	for round := 0; round < 5; round++ {
		for i := 0; i < 3; i++ {
			require.NoError(t, c.Put(fmt.Sprintf("line-%d", next+i)))
		}
		for i := 0; i < 3; i++ {
			got, err := c.Get()
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("line-%d", next+i), got)
		}
		next += 3
	}
}

func TestPutBlocksWhenFull(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)
	require.NoError(t, c.Put("a"))

	done := make(chan struct{})
	go func() {
		_ = c.Put("b")
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("put returned on a full channel")
	case <-time.After(50 * time.Millisecond):
	}

	got, err := c.Get()
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("put did not unblock after get")
	}
}

func TestGetBlocksWhenEmpty(t *testing.T) {
	c, err := New(4)
	require.NoError(t, err)

	got := make(chan string, 1)
	go func() {
		s, err := c.Get()
		if err == nil {
			got <- s
		}
	}()

	select {
	case <-got:
		t.Fatal("get returned on an empty channel")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, c.Put("x"))
	select {
	case s := <-got:
		assert.Equal(t, "x", s)
	case <-time.After(time.Second):
		t.Fatal("get did not unblock after put")
	}
}

func TestCapacityOneAlternates(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)

	const n = 200
	done := make(chan error, 1)
	go func() {
		for i := 0; i < n; i++ {
			if err := c.Put(fmt.Sprintf("%d", i)); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	for i := 0; i < n; i++ {
		got, err := c.Get()
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("%d", i), got)
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("producer deadlocked")
	}
}

func TestFinishedOrthogonalToEmptiness(t *testing.T) {
	c, err := New(4)
	require.NoError(t, err)

	require.NoError(t, c.Put("pending"))
	assert.False(t, c.Finished())

	c.SignalFinished()
	c.SignalFinished() // idempotent
	assert.True(t, c.Finished())
	assert.Equal(t, 1, c.Len(), "finished does not imply empty")

	got, err := c.Get()
	require.NoError(t, err)
	assert.Equal(t, "pending", got)

	// WaitFinished returns promptly once signaled.
	done := make(chan struct{})
	go func() {
		c.WaitFinished()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait finished blocked after signal")
	}
}

func TestCloseUnblocksWaiters(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)

	getErr := make(chan error, 1)
	go func() {
		_, err := c.Get()
		getErr <- err
	}()

	time.Sleep(20 * time.Millisecond)
	c.Close()

	select {
	case err := <-getErr:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("get did not unblock on close")
	}

	assert.ErrorIs(t, c.Put("late"), ErrClosed)
	_, err = c.Get()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOwnedCopies(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	src := []byte("mutable")
	require.NoError(t, c.Put(string(src)))
	src[0] = 'X'

	got, err := c.Get()
	require.NoError(t, err)
	assert.Equal(t, "mutable", got)
}
