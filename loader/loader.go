// Package loader resolves stage names to runnable stages.
//
// Bare names resolve to built-in stages; a name containing a path
// separator (or a bare name with no built-in, looked up under ./stages)
// is opened as a Go plugin exposing the five stage entry points.
package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/itayaharoni2/analyzer/stage"
	"github.com/itayaharoni2/analyzer/transform"
)

// EnvIsolation selects the loader mode. Absent or any value other than
// "0" means isolated mode; "0" means classic shared-module mode.
const EnvIsolation = "ANALYZER_NAMESPACE_ISOLATION"

// StageDir is where bare non-built-in stage names are resolved.
const StageDir = "stages"

// Mode controls how repeated plugin modules are treated.
type Mode int

const (
	// ModeIsolated refuses to open the same plugin module twice: Go
	// plugins are cached per path, so a second open would silently share
	// the first module's state.
	ModeIsolated Mode = iota

	// ModeClassic shares a module handle between stages that name the
	// same plugin, matching classic dlopen semantics. The stages then
	// share module-global state.
	ModeClassic
)

// ModeFromEnv reads EnvIsolation.
func ModeFromEnv() Mode {
	if os.Getenv(EnvIsolation) == "0" {
		return ModeClassic
	}
	return ModeIsolated
}

// ErrUnknownStage is returned when a bare name matches no built-in and no
// stage module file exists for it.
var ErrUnknownStage = errors.New("unknown stage")

// Builtin describes one built-in stage.
type Builtin struct {
	Name    string
	Summary string
	New     func(out io.Writer) stage.Stage
}

var builtins = []Builtin{
	{
		Name:    "logger",
		Summary: "write each line to standard output with a [logger] prefix",
		New: func(out io.Writer) stage.Stage {
			return stage.NewWorker("logger", transform.Logger(out))
		},
	},
	{
		Name:    "uppercaser",
		Summary: "uppercase ASCII letters",
		New: func(out io.Writer) stage.Stage {
			return stage.NewWorker("uppercaser", transform.Uppercaser())
		},
	},
	{
		Name:    "rotator",
		Summary: "move the last character of each line to the front",
		New: func(out io.Writer) stage.Stage {
			return stage.NewWorker("rotator", transform.Rotator())
		},
	},
	{
		Name:    "flipper",
		Summary: "reverse each line",
		New: func(out io.Writer) stage.Stage {
			return stage.NewWorker("flipper", transform.Flipper())
		},
	},
	{
		Name:    "expander",
		Summary: "insert a space between adjacent characters",
		New: func(out io.Writer) stage.Stage {
			return stage.NewWorker("expander", transform.Expander())
		},
	},
	{
		Name:    "typewriter",
		Summary: "type each line character by character, 100ms apart",
		New: func(out io.Writer) stage.Stage {
			return stage.NewWorker("typewriter", transform.Typewriter(out))
		},
	},
}

// Builtins lists the built-in stages in usage order.
func Builtins() []Builtin {
	return builtins
}

// Loader resolves stage names. Safe for use from a single goroutine (the
// driver constructs the pipeline sequentially).
type Loader struct {
	output io.Writer
	mode   Mode

	mu      sync.Mutex
	modules map[string]*pluginModule
}

// New returns a loader whose built-in logger and typewriter stages write
// to out.
func New(out io.Writer, mode Mode) *Loader {
	return &Loader{
		output:  out,
		mode:    mode,
		modules: make(map[string]*pluginModule),
	}
}

// Load resolves one stage name. Built-in stages are freshly instantiated
// on every call; plugin modules follow the loader's Mode.
func (l *Loader) Load(name string) (stage.Stage, error) {
	if !strings.ContainsRune(name, os.PathSeparator) && !strings.Contains(name, "/") {
		for _, b := range builtins {
			if b.Name == name {
				return b.New(l.output), nil
			}
		}
		path := filepath.Join(StageDir, name+".so")
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s (no built-in, no %s)", ErrUnknownStage, name, path)
		}
		return l.openPlugin(path)
	}
	return l.openPlugin(name)
}

// Close drops the loader's whole module table at once; entries are not
// released one by one or in any order. Go plugins cannot be unloaded; the
// OS mapping persists until process exit.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modules = make(map[string]*pluginModule)
	return nil
}
