package logx

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Config{Level: "warn", JSON: true})

	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Warn().Str("task", "essay").Msg("short")
	assert.Contains(t, buf.String(), `"task":"essay"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}
