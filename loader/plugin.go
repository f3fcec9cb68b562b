package loader

import (
	"errors"
	"fmt"
	"plugin"

	"github.com/itayaharoni2/analyzer/stage"
)

// ErrDuplicateModule is returned in isolated mode when a pipeline names
// the same plugin module twice.
var ErrDuplicateModule = errors.New("module already loaded; namespace isolation is unavailable for a reopened module")

// The five entry points a stage module must export.
const (
	symInit         = "PluginInit"
	symAttach       = "PluginAttach"
	symPlaceWork    = "PluginPlaceWork"
	symWaitFinished = "PluginWaitFinished"
	symFini         = "PluginFini"
)

type pluginModule struct {
	path string

	init         func(queueSize int) error
	attach       func(next func(string) error)
	placeWork    func(line string) error
	waitFinished func() error
	fini         func() error
}

func (l *Loader) openPlugin(path string) (stage.Stage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if m, ok := l.modules[path]; ok {
		if l.mode == ModeIsolated {
			return nil, fmt.Errorf("%s: %w", path, ErrDuplicateModule)
		}
		return &pluginStage{mod: m}, nil
	}

	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening module %s: %w", path, err)
	}

	m := &pluginModule{path: path}
	if err := resolve(p, path, symInit, &m.init); err != nil {
		return nil, err
	}
	if err := resolve(p, path, symAttach, &m.attach); err != nil {
		return nil, err
	}
	if err := resolve(p, path, symPlaceWork, &m.placeWork); err != nil {
		return nil, err
	}
	if err := resolve(p, path, symWaitFinished, &m.waitFinished); err != nil {
		return nil, err
	}
	if err := resolve(p, path, symFini, &m.fini); err != nil {
		return nil, err
	}

	l.modules[path] = m
	return &pluginStage{mod: m}, nil
}

// resolve looks up one exported symbol and binds it to fn, which must be a
// pointer to a function of the expected signature.
func resolve[F any](p *plugin.Plugin, path, name string, fn *F) error {
	sym, err := p.Lookup(name)
	if err != nil {
		return fmt.Errorf("module %s: missing symbol %s: %w", path, name, err)
	}
	f, ok := sym.(F)
	if !ok {
		return fmt.Errorf("module %s: symbol %s has type %T, want %T", path, name, sym, *fn)
	}
	*fn = f
	return nil
}

// pluginStage adapts the five-symbol module ABI to the stage contract.
type pluginStage struct {
	mod *pluginModule
}

func (s *pluginStage) Init(queueSize int) error {
	if err := s.mod.init(queueSize); err != nil {
		return fmt.Errorf("module %s: %w", s.mod.path, err)
	}
	return nil
}

func (s *pluginStage) Attach(next stage.PlaceWork) error {
	s.mod.attach(next)
	return nil
}

func (s *pluginStage) PlaceWork(line string) error {
	return s.mod.placeWork(line)
}

func (s *pluginStage) WaitFinished() error {
	return s.mod.waitFinished()
}

func (s *pluginStage) Fini() error {
	return s.mod.fini()
}
