// Package stage defines the contract every pipeline stage satisfies and
// the worker that implements it for in-process transforms.
package stage

// Terminator is the in-band end-of-stream line. It is propagated through
// every stage unchanged and is never transformed.
const Terminator = "<END>"

// PlaceWork is a bound handle to a stage's input. Forwarding through it
// copies the line into the receiving stage's channel.
type PlaceWork func(line string) error

// Transform maps one line to a new owned line. Implementations must be
// pure with respect to their own stage (each runs on exactly one worker),
// must pass the terminator through unchanged, and report transient
// failures with a non-nil error.
type Transform func(line string) (string, error)

// Stage is the five-operation stage contract.
//
//   - Init allocates the stage's channel and starts its worker.
//   - Attach fixes the forward handle; at most once, before feeding.
//     A nil next marks the terminal stage.
//   - PlaceWork submits one line, blocking while the channel is full.
//   - WaitFinished blocks until the worker has observed the terminator.
//   - Fini joins the worker and releases the channel. After a normal
//     shutdown it only cleans up; on an abnormal teardown it first stops
//     the worker itself.
type Stage interface {
	Init(queueSize int) error
	Attach(next PlaceWork) error
	PlaceWork(line string) error
	WaitFinished() error
	Fini() error
}
