package logger

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/deletarr-go/internal/config"
)

func TestRingBuffer(t *testing.T) {
	r := NewRingBuffer(3)
	assert.Empty(t, r.Lines())

	_, err := r.Write([]byte("one\ntwo\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, r.Lines())

	for i := 3; i <= 5; i++ {
		_, _ = fmt.Fprintf(r, "line %d\n", i)
	}
	assert.Equal(t, []string{"line 3", "line 4", "line 5"}, r.Lines())
	assert.Equal(t, 3, r.Len())

	_, _ = r.Write([]byte("\n\n"))
	assert.Equal(t, 3, r.Len())
}

func TestRingBuffer_DefaultCapacity(t *testing.T) {
	r := NewRingBuffer(0)
	for i := 0; i < DefaultCapacity+10; i++ {
		_, _ = fmt.Fprintf(r, "%d\n", i)
	}
	lines := r.Lines()
	require.Len(t, lines, DefaultCapacity)
	assert.Equal(t, "10", lines[0])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
}

func TestSetup_WritesToRingBuffer(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	ring := NewRingBuffer(10)
	Setup(config.Logging{
		Level:      "warn",
		File:       filepath.Join(t.TempDir(), "deletarr.log"),
		MaxSize:    1,
		MaxBackups: 1,
	}, ring, true)

	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	log.Info().Str("service", "Radarr").Msg("processing category")

	lines := ring.Lines()
	require.NotEmpty(t, lines)
	last := lines[len(lines)-1]
	assert.Contains(t, last, "processing category")
	assert.Contains(t, last, "service=Radarr")
}
