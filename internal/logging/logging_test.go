package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesConsoleAndFile(t *testing.T) {
	saved := log.Logger
	t.Cleanup(func() {
		log.Logger = saved
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})

	dir := filepath.Join(t.TempDir(), "logs")
	var console bytes.Buffer
	require.NoError(t, Init(Options{Verbose: true, Dir: dir, Console: &console}))

	log.Debug().Str("issue", "ABC-1").Msg("timeline built")

	assert.Contains(t, console.String(), "timeline built")
	assert.Contains(t, console.String(), "issue=ABC-1")

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"issue":"ABC-1"`)
}

func TestInit_LevelFollowsVerbose(t *testing.T) {
	saved := log.Logger
	t.Cleanup(func() {
		log.Logger = saved
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})

	var console bytes.Buffer
	require.NoError(t, Init(Options{Console: &console}))
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")
}

func TestInit_UnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	err := Init(Options{Dir: filepath.Join(file, "logs"), Console: &bytes.Buffer{}})
	assert.Error(t, err)
}
