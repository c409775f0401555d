package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")
	require.NotNil(t, log)

	log.Info().Msg("test message")
	assert.Contains(t, buf.String(), "test message")
}

func TestNewDefaultWriter(t *testing.T) {
	log := New(nil, "info")
	require.NotNil(t, log)
	assert.Equal(t, zerolog.InfoLevel, log.Level())
}

func TestNew_UnknownLevelFallsBackToWarn(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "chatty")
	assert.Equal(t, zerolog.WarnLevel, log.Level())

	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestSubAndPlugin(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug")

	log.Sub("plugin").Plugin("categorizer").Info().Msg("loaded")
	out := buf.String()
	assert.Contains(t, out, `"subsystem":"plugin"`)
	assert.Contains(t, out, `"plugin":"categorizer"`)
	assert.Contains(t, out, "loaded")
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Debug().Msg("debug msg")
	log.Info().Msg("info msg")
	assert.Empty(t, buf.String(), "debug and info should be filtered at warn level")

	log.Warn().Msg("warn msg")
	assert.Contains(t, buf.String(), "warn msg")

	buf.Reset()
	log.Error().Msg("error msg")
	assert.Contains(t, buf.String(), "error msg")
}

func TestSilent(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "silent")
	log.Error().Msg("nope")
	assert.Empty(t, buf.String())

	Nop().Error().Msg("nope")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"silent", zerolog.Disabled},
		{"off", zerolog.Disabled},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("")
	assert.Error(t, err)
	_, err = ParseLevel("fatal")
	assert.Error(t, err)
}
