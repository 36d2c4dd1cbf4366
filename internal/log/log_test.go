package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLog_WritesLevelCategoryAndFields(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf)
	t.Cleanup(Reset)

	Info(CatQuery, "Query complete", "handle", 3, "rows", 2)

	out := buf.String()
	require.Contains(t, out, "[INFO] [query] Query complete")
	require.Contains(t, out, "handle=3")
	require.Contains(t, out, "rows=2")
}

func TestLog_OrphanFieldMarkedMissing(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf)
	t.Cleanup(Reset)

	Debug(CatParse, "odd fields", "handle")

	require.Contains(t, buf.String(), "handle=<missing>")
}

func TestLog_MinLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf)
	t.Cleanup(Reset)

	SetMinLevel(LevelWarn)
	Debug(CatCache, "hidden")
	Warn(CatCache, "shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "[WARN] [cache] shown")
}

func TestLog_Disabled(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf)
	t.Cleanup(Reset)

	SetEnabled(false)
	Error(CatCLI, "nothing")
	require.Empty(t, buf.String())
}

func TestLog_ErrorErr(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf)
	t.Cleanup(Reset)

	ErrorErr(CatParse, "Parse failed", errors.New("quote not closed"), "handle", 1)
	ErrorErr(CatParse, "nil error", nil)

	out := buf.String()
	require.Contains(t, out, "error=quote not closed")
	require.Contains(t, out, "error=<nil>")
}

func TestLog_NoLoggerIsNoop(t *testing.T) {
	Reset()
	require.NotPanics(t, func() {
		Info(CatConfig, "no logger")
		SetEnabled(true)
		SetMinLevel(LevelError)
	})
}

func TestInit_AppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")

	cleanup, err := Init(path)
	require.NoError(t, err)
	t.Cleanup(Reset)

	Info(CatRegistry, "Registered payload", "handle", 1)
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "[INFO] [registry] Registered payload handle=1")
}

func TestInit_BadPath(t *testing.T) {
	_, err := Init(filepath.Join(t.TempDir(), "missing", "dir", "debug.log"))
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLevel(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	_, err := ParseLevel("loud")
	require.Error(t, err)
}
