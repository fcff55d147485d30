package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"tiltball/config"
)

func TestNewLevels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"":      zapcore.InfoLevel,
		"loud":  zapcore.InfoLevel,
	}
	for in, want := range cases {
		log, err := New(config.LogConfig{Level: in, Format: "json"})
		require.NoError(t, err, in)
		assert.True(t, log.Core().Enabled(want), "level %q", in)
		if want > zapcore.DebugLevel {
			assert.False(t, log.Core().Enabled(want-1), "level %q", in)
		}
	}
}

func TestNewDevelopmentConsole(t *testing.T) {
	log, err := New(config.LogConfig{Level: "debug", Format: "console", Development: true})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}
