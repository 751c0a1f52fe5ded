// Command kana-game serves the language-learning backend: it merges the
// configured question sources into a catalog and schedules per-user reviews
// over a JSON-RPC API.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jomof/kana-game/internal/catalog"
	"github.com/jomof/kana-game/internal/config"
	"github.com/jomof/kana-game/internal/scheduler"
	"github.com/jomof/kana-game/internal/web"
)

func main() {
	flags := config.Flags("kana-game")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// --optimize runs the offline parameter fit for one user and exits. It is
	// deliberately not reachable from the request path.
	if user, _ := flags.GetString("optimize"); user != "" {
		if err := optimizeUser(cfg, user); err != nil {
			slog.Error("optimization failed", "user", user, "error", err)
			os.Exit(1)
		}
		return
	}

	loader := catalog.NewLoader(cfg.Sources, cfg.ReposDir)
	loader.Sync(context.Background())

	server := web.NewServer(cfg, loader)
	slog.Info("listening", "addr", cfg.Addr, "sources", cfg.Sources)
	if err := server.Router().Run(cfg.Addr); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func optimizeUser(cfg *config.Config, user string) error {
	engine, err := scheduler.ForUser(cfg.DataDir, user)
	if err != nil {
		return err
	}
	defer engine.Close()
	return engine.Optimize(context.Background())
}
