package loader

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itayaharoni2/analyzer/stage"
)

func TestBuiltinsAreComplete(t *testing.T) {
	names := make([]string, 0, len(Builtins()))
	for _, b := range Builtins() {
		names = append(names, b.Name)
		assert.NotEmpty(t, b.Summary)
	}
	assert.Equal(t,
		[]string{"logger", "uppercaser", "rotator", "flipper", "expander", "typewriter"},
		names)
}

func TestLoadBuiltin(t *testing.T) {
	ld := New(&bytes.Buffer{}, ModeIsolated)
	s, err := ld.Load("flipper")
	require.NoError(t, err)
	require.NotNil(t, s)

	// Built-ins are freshly instantiated on every load.
	s2, err := ld.Load("flipper")
	require.NoError(t, err)
	assert.NotSame(t, s, s2)
}

func TestLoadBuiltinRunsStandalone(t *testing.T) {
	var buf bytes.Buffer
	ld := New(&buf, ModeIsolated)
	s, err := ld.Load("logger")
	require.NoError(t, err)

	require.NoError(t, s.Init(2))
	require.NoError(t, s.PlaceWork("line"))
	require.NoError(t, s.PlaceWork(stage.Terminator))
	require.NoError(t, s.WaitFinished())
	require.NoError(t, s.Fini())

	assert.Equal(t, "[logger] line\n", buf.String())
}

func TestLoadUnknownStage(t *testing.T) {
	ld := New(&bytes.Buffer{}, ModeIsolated)
	_, err := ld.Load("no-such-stage")
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestLoadMissingModulePath(t *testing.T) {
	ld := New(&bytes.Buffer{}, ModeIsolated)
	_, err := ld.Load("./no/such/module.so")
	assert.Error(t, err)
}

func TestModeFromEnv(t *testing.T) {
	t.Setenv(EnvIsolation, "")
	assert.Equal(t, ModeIsolated, ModeFromEnv())

	t.Setenv(EnvIsolation, "1")
	assert.Equal(t, ModeIsolated, ModeFromEnv())

	t.Setenv(EnvIsolation, "0")
	assert.Equal(t, ModeClassic, ModeFromEnv())
}
