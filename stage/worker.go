package stage

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/itayaharoni2/analyzer/channel"
)

var (
	// ErrNotInitialized is returned when a stage operation runs before
	// Init or after Fini.
	ErrNotInitialized = errors.New("stage not initialized")

	// ErrAlreadyAttached is returned by a second Attach.
	ErrAlreadyAttached = errors.New("stage already attached")
)

// Worker binds one transform to one input channel and one goroutine. It
// runs until it observes the terminator, forwards every output downstream
// when attached, and signals its channel's finished gate exactly once on
// exit.
type Worker struct {
	name      string
	transform Transform

	mu       sync.Mutex
	ch       *channel.Channel
	next     PlaceWork
	attached bool

	done sync.WaitGroup
}

// NewWorker returns an unstarted worker stage.
func NewWorker(name string, fn Transform) *Worker {
	return &Worker{name: name, transform: fn}
}

// Name returns the stage name.
func (w *Worker) Name() string { return w.name }

// Init allocates the input channel and starts the worker goroutine.
func (w *Worker) Init(queueSize int) error {
	ch, err := channel.New(queueSize)
	if err != nil {
		return fmt.Errorf("stage %s: %w", w.name, err)
	}

	w.mu.Lock()
	w.ch = ch
	w.mu.Unlock()

	w.done.Add(1)
	go w.run(ch)
	return nil
}

// Attach fixes the forward handle for the lifetime of the stage. A nil
// next marks this stage terminal; in either case a second call is an
// error.
func (w *Worker) Attach(next PlaceWork) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.attached {
		return fmt.Errorf("stage %s: %w", w.name, ErrAlreadyAttached)
	}
	w.attached = true
	w.next = next
	return nil
}

// PlaceWork submits one line into the stage's channel, blocking while the
// channel is full.
func (w *Worker) PlaceWork(line string) error {
	w.mu.Lock()
	ch := w.ch
	w.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("stage %s: %w", w.name, ErrNotInitialized)
	}
	if err := ch.Put(line); err != nil {
		return fmt.Errorf("stage %s: %w", w.name, err)
	}
	return nil
}

// WaitFinished blocks until the worker has observed the terminator and
// signaled the channel's finished gate.
func (w *Worker) WaitFinished() error {
	w.mu.Lock()
	ch := w.ch
	w.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("stage %s: %w", w.name, ErrNotInitialized)
	}
	ch.WaitFinished()
	return nil
}

// Fini joins the worker and releases the channel. If the worker has not
// yet observed the terminator (rollback or abnormal teardown), Fini feeds
// it one directly; the stage is unwired or already stalled in those
// paths, so the terminator stops exactly this worker.
func (w *Worker) Fini() error {
	w.mu.Lock()
	ch := w.ch
	w.ch = nil
	w.mu.Unlock()
	if ch == nil {
		return nil
	}

	if !ch.Finished() {
		if err := ch.Put(Terminator); err != nil {
			// Channel already closed under us; the worker has exited.
			log.Printf("stage %s: fini: %v", w.name, err)
		}
	}
	w.done.Wait()
	ch.Close()
	return nil
}

func (w *Worker) run(ch *channel.Channel) {
	defer w.done.Done()
	// The finished gate must be signaled on every exit path or shutdown
	// would stall waiting on this stage.
	defer ch.SignalFinished()

	for {
		line, err := ch.Get()
		if err != nil {
			log.Printf("stage %s: input channel: %v", w.name, err)
			return
		}

		if line == Terminator {
			if next := w.forward(); next != nil {
				if err := next(Terminator); err != nil {
					log.Printf("stage %s: forwarding terminator: %v", w.name, err)
				}
			}
			return
		}

		out, err := w.transform(line)
		if err != nil {
			// Transient transform failure: log and keep consuming so the
			// terminator is never swallowed.
			log.Printf("stage %s: transform: %v", w.name, err)
			continue
		}

		if next := w.forward(); next != nil {
			if err := next(out); err != nil {
				log.Printf("stage %s: forward: %v", w.name, err)
			}
		}
	}
}

func (w *Worker) forward() PlaceWork {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.next
}
