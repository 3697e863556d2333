package entropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Disabled(t *testing.T) {
	is := assert.New(t)

	p := New(false, nil)
	is.Equal(Disabled, p.Mode())
}

func TestNew_EnabledResolvesToNonDisabled(t *testing.T) {
	is := assert.New(t)

	p := New(true, nil)
	is.NotEqual(Disabled, p.Mode())
}

func TestFetch_LengthAndPanic(t *testing.T) {
	is := assert.New(t)

	p := New(true, nil)
	buf, err := p.Fetch(32)
	require.NoError(t, err)
	is.Len(buf, 32)

	disabled := New(false, nil)
	is.Panics(func() { _, _ = disabled.Fetch(32) })
}

func TestModeString(t *testing.T) {
	is := assert.New(t)

	is.Equal("disabled", Disabled.String())
	is.Equal("hardware-rng", HardwareRNG.String())
	is.Equal("os-fallback", OSFallback.String())
	is.Equal("unknown", Mode(99).String())
}
