package logutil

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevel(t *testing.T) {
	cases := map[int]slog.Level{
		-1: slog.LevelInfo,
		0:  slog.LevelInfo,
		1:  slog.LevelDebug,
		2:  LevelTrace,
		5:  LevelTrace,
	}

	for verbosity, want := range cases {
		assert.Equal(t, want, Level(verbosity), "verbosity %d", verbosity)
	}
}

func TestTrace(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	slog.SetDefault(NewLogger(&buf, LevelTrace, ""))

	Trace("scanned", "lines", 3)
	assert.Contains(t, buf.String(), "level=TRACE")
	assert.Contains(t, buf.String(), "source=logutil_test.go:")
	assert.Contains(t, buf.String(), "lines=3")

	buf.Reset()
	slog.SetDefault(NewLogger(&buf, slog.LevelInfo, ""))

	Trace("scanned", "lines", 3)
	slog.Info("done")
	assert.NotContains(t, buf.String(), "TRACE")
	assert.NotContains(t, buf.String(), "source=")
	assert.Contains(t, buf.String(), "msg=done")
}

func TestNewLoggerCommand(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo, "remap").Info("remapped embeddings", "vocab", 12)
	assert.Contains(t, buf.String(), "cmd=remap")
	assert.Contains(t, buf.String(), "vocab=12")

	buf.Reset()
	NewLogger(&buf, slog.LevelInfo, "").Info("wrote dictionary")
	assert.NotContains(t, buf.String(), "cmd=")
}

func TestTimed(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	slog.SetDefault(NewLogger(&buf, slog.LevelDebug, "build"))

	done := Timed("counted corpus", "files", 2)
	done("symbols", 7)

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, "source=logutil_test.go:")
	assert.Contains(t, out, `msg="counted corpus"`)
	assert.Contains(t, out, "cmd=build")
	assert.Contains(t, out, "files=2")
	assert.Contains(t, out, "symbols=7")
	assert.Contains(t, out, "elapsed=")

	buf.Reset()
	slog.SetDefault(NewLogger(&buf, slog.LevelInfo, ""))

	Timed("loaded checkpoint")()
	assert.Empty(t, buf.String())
}
