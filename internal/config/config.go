// Package config holds the server's runtime configuration: listen
// address, storage location, default game settings and CORS policy,
// loaded from a TOML file with sensible defaults when absent. Grounded on
// frankkopp-FrankyGo/internal/config/config.go's toml.DecodeFile-onto-
// struct-with-defaults pattern.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/herohde/shogiserver/internal/room"
)

// Settings is the full server configuration.
type Settings struct {
	Server  ServerConfig
	Game    GameConfig
	Storage StorageConfig
}

// ServerConfig governs the HTTP/websocket listener.
type ServerConfig struct {
	ListenAddr  string
	CORSOrigins []string
}

// GameConfig supplies default per-room settings for newly created rooms.
type GameConfig struct {
	InitialSeconds int
	ByoyomiSeconds int
	RandomTurn     bool
	FixTurn        bool
}

// ToRoomSettings converts GameConfig into a room.Settings value.
func (g GameConfig) ToRoomSettings() room.Settings {
	return room.Settings{
		InitialSeconds: g.InitialSeconds,
		ByoyomiSeconds: g.ByoyomiSeconds,
		RandomTurn:     g.RandomTurn,
		FixTurn:        g.FixTurn,
	}
}

// StorageConfig governs the Badger-backed persistence adapter.
type StorageConfig struct {
	DataDir         string
	GCIntervalHours int
	GCMaxAgeHours   int
}

// Default returns the server's built-in defaults, used whenever the
// config file is absent or a field is left unset.
func Default() Settings {
	return Settings{
		Server: ServerConfig{
			ListenAddr:  ":3001",
			CORSOrigins: nil, // empty: allow any origin, per internal/transport/ws's CheckOrigin
		},
		Game: GameConfig{
			InitialSeconds: 600,
			ByoyomiSeconds: 30,
			RandomTurn:     true,
			FixTurn:        false,
		},
		Storage: StorageConfig{
			DataDir:         "./data",
			GCIntervalHours: 1,
			GCMaxAgeHours:   24,
		},
	}
}

// Load reads path as TOML onto the defaults, so any field the file
// omits keeps its default value. An empty path returns Default() with no
// error. A missing or undecodable file returns the error together with
// the defaults, so the caller can log the reason and carry on (mirrors
// FrankyGo's Setup(), generalized from a
// package-level global to a returned value since this server has no
// single process-wide config singleton to mutate).
func Load(path string) (Settings, error) {
	settings := Default()
	if path == "" {
		return settings, nil
	}

	if _, err := toml.DecodeFile(path, &settings); err != nil {
		return settings, fmt.Errorf("config: decode %v: %w", path, err)
	}
	return settings, nil
}
