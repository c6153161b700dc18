// shogiserver hosts real-time multiplayer shogi rooms over websockets,
// persisting room state to disk so a restart can resume in-progress
// games. Grounded on cmd/morlock/main.go's flag.Usage banner and
// logw-driven startup sequencing, generalized from a single engine
// process reading stdin/stdout to an HTTP listener supervised alongside
// background GC loops.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/herohde/shogiserver/internal/buildinfo"
	"github.com/herohde/shogiserver/internal/config"
	"github.com/herohde/shogiserver/internal/room"
	"github.com/herohde/shogiserver/internal/session"
	"github.com/herohde/shogiserver/internal/storage"
	"github.com/herohde/shogiserver/internal/transport/ws"
	"github.com/seekerror/logw"
	"golang.org/x/sync/errgroup"
)

var (
	configPath = flag.String("config", "", "Path to a TOML config file (optional; built-in defaults are used if absent)")
)

func init() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `usage: shogiserver [options]

shogiserver hosts real-time multiplayer shogi rooms over websockets.
Options:
`)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	ctx := context.Background()

	logw.Infof(ctx, "shogiserver %v starting", buildinfo.Version)

	settings, err := config.Load(*configPath)
	if err != nil {
		logw.Infof(ctx, "config: %v (continuing with defaults)", err)
	}

	store, err := storage.Open(settings.Storage.DataDir)
	if err != nil {
		logw.Exitf(ctx, "storage: open %v failed: %v", settings.Storage.DataDir, err)
	}
	defer store.Close()

	manager := room.NewManager(settings.Game.ToRoomSettings(), nil, store)

	router := session.NewRouter(manager, nil)
	server := ws.NewServer(router, settings.Server.CORSOrigins)

	// manager and router were constructed without a broadcaster because
	// the broadcaster (server) and the router both need each other: wire
	// them together now that both exist.
	manager.SetBroadcaster(server)
	router.SetBroadcaster(server)

	saved, err := store.LoadAll(ctx)
	if err != nil {
		logw.Exitf(ctx, "storage: load all failed: %v", err)
	}
	for id, snap := range saved {
		manager.Restore(id, snap)
	}
	logw.Infof(ctx, "restored %v room(s) from %v", len(saved), settings.Storage.DataDir)

	mux := http.NewServeMux()
	mux.Handle("/ws", server)

	httpServer := &http.Server{
		Addr:    settings.Server.ListenAddr,
		Handler: mux,
	}

	gcInterval := time.Duration(settings.Storage.GCIntervalHours) * time.Hour
	gcMaxAge := time.Duration(settings.Storage.GCMaxAgeHours) * time.Hour

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logw.Infof(gctx, "listening on %v", settings.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		manager.GC(gctx, gcInterval, gcMaxAge)
		return nil
	})
	g.Go(func() error {
		store.GC(gctx, gcInterval, gcMaxAge, manager.IsLive)
		return nil
	})

	if err := g.Wait(); err != nil {
		logw.Exitf(ctx, "shogiserver exited: %v", err)
	}
}
