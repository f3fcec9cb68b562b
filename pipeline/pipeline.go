// Package pipeline assembles stages into an ordered stream processor and
// owns their lifecycle: phased construction with reverse rollback, in-band
// termination, in-order await, and reverse finalize.
package pipeline

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/itayaharoni2/analyzer/stage"
)

// Error kinds, matched with errors.Is. Each pipeline failure wraps exactly
// one of these.
var (
	ErrLoad     = errors.New("stage load failed")
	ErrInit     = errors.New("stage init failed")
	ErrWire     = errors.New("stage wiring failed")
	ErrFeed     = errors.New("pipeline feed failed")
	ErrShutdown = errors.New("pipeline shutdown failed")
)

// StageError records which stage and lifecycle operation an error came
// from.
type StageError struct {
	Kind  error // one of the sentinel kinds above
	Stage string
	Op    string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Op, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) Is(target error) bool { return target == e.Kind }

// Loader resolves a stage name to a runnable stage. Satisfied by
// loader.Loader.
type Loader interface {
	Load(name string) (stage.Stage, error)
}

type boundStage struct {
	name string
	s    stage.Stage
}

// Pipeline is an ordered sequence of stages wired head to tail. Lines
// enter through Place; the terminator enters through Terminate, exactly
// once.
type Pipeline struct {
	queueSize int
	stages    []boundStage

	terminate sync.Once
	termErr   error
}

// New builds a pipeline: every named stage is loaded in order, initialized
// in order, then wired in order. A load failure unwinds nothing (no stage
// was started); an init failure at index k rolls back stages 0..k, the
// failed stage included, with Fini in reverse before returning. On success the pipeline is running
// and ready to be fed.
func New(ld Loader, queueSize int, names []string) (*Pipeline, error) {
	if queueSize < 1 {
		return nil, &StageError{Kind: ErrInit, Stage: "-", Op: "init",
			Err: fmt.Errorf("queue size must be at least 1, got %d", queueSize)}
	}
	if len(names) == 0 {
		return nil, &StageError{Kind: ErrLoad, Stage: "-", Op: "load",
			Err: errors.New("no stages requested")}
	}

	p := &Pipeline{queueSize: queueSize}

	// Load phase.
	for _, name := range names {
		s, err := ld.Load(name)
		if err != nil {
			return nil, &StageError{Kind: ErrLoad, Stage: name, Op: "load", Err: err}
		}
		p.stages = append(p.stages, boundStage{name: name, s: s})
	}

	// Init phase. The only transactional moment: a failure here unwinds
	// every already-running stage in reverse.
	for i, bs := range p.stages {
		if err := bs.s.Init(queueSize); err != nil {
			for j := i; j >= 0; j-- {
				if ferr := p.stages[j].s.Fini(); ferr != nil {
					log.Printf("rollback: stage %s: fini: %v", p.stages[j].name, ferr)
				}
			}
			return nil, &StageError{Kind: ErrInit, Stage: bs.name, Op: "init", Err: err}
		}
	}

	// Wire phase, head to tail.
	for i := 0; i < len(p.stages)-1; i++ {
		if err := p.stages[i].s.Attach(p.stages[i+1].s.PlaceWork); err != nil {
			p.abort()
			return nil, &StageError{Kind: ErrWire, Stage: p.stages[i].name, Op: "attach", Err: err}
		}
	}

	return p, nil
}

// abort tears down a partially wired pipeline in reverse. No lines have
// been fed yet, so each stage's Fini can stop its own worker directly.
func (p *Pipeline) abort() {
	for i := len(p.stages) - 1; i >= 0; i-- {
		if err := p.stages[i].s.Fini(); err != nil {
			log.Printf("abort: stage %s: fini: %v", p.stages[i].name, err)
		}
	}
}

// Len returns the number of stages.
func (p *Pipeline) Len() int { return len(p.stages) }

// Names returns the stage names in pipeline order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, bs := range p.stages {
		names[i] = bs.name
	}
	return names
}

// Place submits one line to the head stage, blocking while its channel is
// full.
func (p *Pipeline) Place(line string) error {
	head := p.stages[0]
	if head.s == nil {
		return &StageError{Kind: ErrFeed, Stage: head.name, Op: "place_work",
			Err: errors.New("pipeline already finalized")}
	}
	if err := head.s.PlaceWork(line); err != nil {
		return &StageError{Kind: ErrFeed, Stage: head.name, Op: "place_work", Err: err}
	}
	return nil
}

// Terminate submits the terminator to the head stage. Safe to call more
// than once; only the first call places anything.
func (p *Pipeline) Terminate() error {
	p.terminate.Do(func() {
		p.termErr = p.Place(stage.Terminator)
	})
	return p.termErr
}

// Await blocks until every stage has observed the terminator, in stream
// order. Stage i cannot finish before stage i-1 has forwarded the
// terminator, so waiting in order adds no latency.
func (p *Pipeline) Await() error {
	var errs []error
	for _, bs := range p.stages {
		if bs.s == nil {
			continue
		}
		if err := bs.s.WaitFinished(); err != nil {
			errs = append(errs, &StageError{Kind: ErrShutdown, Stage: bs.name, Op: "wait_finished", Err: err})
		}
	}
	return errors.Join(errs...)
}

// Finalize releases every stage in reverse construction order. Errors are
// collected best-effort; every stage is finalized regardless.
func (p *Pipeline) Finalize() error {
	var errs []error
	for i := len(p.stages) - 1; i >= 0; i-- {
		bs := p.stages[i]
		if bs.s == nil {
			continue
		}
		if err := bs.s.Fini(); err != nil {
			errs = append(errs, &StageError{Kind: ErrShutdown, Stage: bs.name, Op: "fini", Err: err})
		}
		p.stages[i].s = nil
	}
	return errors.Join(errs...)
}

// Shutdown runs Await then Finalize. The terminator must already have
// been placed (Terminate) or Await will block forever.
func (p *Pipeline) Shutdown() error {
	return errors.Join(p.Await(), p.Finalize())
}
