package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/herohde/shogiserver/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	settings, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.Equal(t, config.Default(), settings)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	settings, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), settings)
}

func TestLoadOverridesOnlySpecifiedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	const body = `
[server]
ListenAddr = ":9090"

[game]
InitialSeconds = 300
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	settings, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", settings.Server.ListenAddr)
	assert.Equal(t, 300, settings.Game.InitialSeconds)
	assert.Equal(t, config.Default().Game.ByoyomiSeconds, settings.Game.ByoyomiSeconds)
}

func TestGameConfigConvertsToRoomSettings(t *testing.T) {
	g := config.GameConfig{InitialSeconds: 600, ByoyomiSeconds: 30, RandomTurn: true}
	rs := g.ToRoomSettings()
	assert.Equal(t, 600, rs.InitialSeconds)
	assert.Equal(t, 30, rs.ByoyomiSeconds)
	assert.True(t, rs.RandomTurn)
}
