package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Init_DisabledDiscards(t *testing.T) {
	t.Cleanup(func() { Init(Options{}) })

	var buf bytes.Buffer
	Init(Options{Enabled: false, Writer: &buf})
	Info("dropped")
	require.Zero(t, buf.Len())
}

func Test_Init_TextLevelFilter(t *testing.T) {
	t.Cleanup(func() { Init(Options{}) })

	var buf bytes.Buffer
	Init(Options{Enabled: true, Writer: &buf, Level: slog.LevelWarn})
	Info("below threshold")
	Warn("chunk released", "blockSize", 12)

	out := buf.String()
	require.NotContains(t, out, "below threshold")
	require.Contains(t, out, "chunk released")
	require.Contains(t, out, "blockSize=12")
}

func Test_Init_JSON(t *testing.T) {
	t.Cleanup(func() { Init(Options{}) })

	var buf bytes.Buffer
	Init(Options{Enabled: true, Writer: &buf, Level: slog.LevelDebug, JSON: true})
	Debug("chunk created", "blockSize", 16, "blocks", 255)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "chunk created", rec["msg"])
	require.Equal(t, float64(255), rec["blocks"])
}

func Test_ParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	require.Equal(t, slog.LevelInfo, lvl)

	_, err = ParseLevel("verbose")
	require.Error(t, err)
}
