package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	for in, want := range map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	} {
		assert.Equal(t, want, New(in, &bytes.Buffer{}).GetLevel(), in)
	}
}

func TestComponentField(t *testing.T) {
	var buf bytes.Buffer
	log := Component(New("info", &buf), "journal")
	log.Info().Msg("opened")
	log.Debug().Msg("hidden")

	out := buf.String()
	assert.Contains(t, out, "component=journal")
	assert.Contains(t, out, "opened")
	assert.NotContains(t, out, "hidden")
}
