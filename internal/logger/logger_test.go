package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitAndDocumentFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(Options{Level: "debug", Console: &buf}))
	defer Close()

	lg := ForDocument("exhibit-a.pdf", 2)
	lg.Info().Str("strategy", "DirectLoad").Msg("strategy succeeded")

	var ev map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &ev))
	assert.Equal(t, "exhibit-a.pdf", ev["doc"])
	assert.Equal(t, float64(2), ev["ordinal"])
	assert.Equal(t, "DirectLoad", ev["strategy"])
	assert.Equal(t, "info", ev["level"])
}

func TestInitLevelAndFile(t *testing.T) {
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "svc.log")
	require.NoError(t, Init(Options{Level: "warn", Console: &buf, File: file, MaxSizeMB: 1}))
	defer Close()

	log.Info().Msg("dropped")
	lg := ForBatch("b1", 3)
	lg.Warn().Msg("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"batch":"b1"`)
	assert.FileExists(t, file)
}

func TestAxiomWriterFiltersAndShips(t *testing.T) {
	var (
		mu  sync.Mutex
		got []axiom.Event
	)
	s := startShipper(func(_ context.Context, evs []axiom.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, evs...)
		return nil
	}, time.Hour)
	w := &axiomWriter{shipper: s, min: zerolog.InfoLevel}
	lg := zerolog.New(zerolog.MultiLevelWriter(w)).Level(zerolog.DebugLevel)

	lg.Debug().Msg("too chatty")
	lg.Warn().Str("doc", "a.pdf").Msg("placeholder pages used")
	s.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "placeholder pages used", got[0]["message"])
	assert.Equal(t, Service, got[0]["service"])
	assert.Equal(t, "a.pdf", got[0]["doc"])
}
