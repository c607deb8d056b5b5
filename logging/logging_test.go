package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")
	c, err := Setup("debug", path)
	require.NoError(t, err)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel); Discard() })

	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	log.Info().Str("k", "v").Msg("hello")
	require.NoError(t, c.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"message":"hello"`)
	assert.Contains(t, string(raw), `"k":"v"`)
}

func TestSetupUnknownLevelFallsBack(t *testing.T) {
	c, err := Setup("loud", "")
	require.NoError(t, err)
	t.Cleanup(Discard)
	assert.NoError(t, c.Close())
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestSetupBadPath(t *testing.T) {
	_, err := Setup("info", filepath.Join(t.TempDir(), "missing", "x.log"))
	assert.Error(t, err)
}
