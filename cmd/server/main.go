package main

import (
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"boardgame-server/internal/engine"
	"boardgame-server/internal/games/dicebattle"
	"boardgame-server/internal/infrastructure/storage"
	"boardgame-server/internal/match"
	"boardgame-server/internal/server"
	"boardgame-server/internal/version"
	"boardgame-server/pkg/logger"
)

func init() {
	logger.Init()
}

func main() {
	// 1. Парсинг конфигурации
	var seed int64
	var replayPath string
	var playersFlag string
	flag.Int64Var(&seed, "seed", 0, "Seed for the bootstrap match (0 for random)")
	flag.StringVar(&replayPath, "replay", "", "Path to .bgrp replay file to simulate")
	flag.StringVar(&playersFlag, "players", "", "Comma-separated player ids for a bootstrap match")
	flag.Parse()

	logger.Log.Info("Starting board game server...")
	logger.Log.Info(version.String())

	cfg, err := server.LoadConfig()
	if err != nil {
		logger.Log.Fatal("Config error: ", err)
	}

	replays := storage.NewReplayService(cfg.ReplayDir)
	matches := match.NewService[dicebattle.Core](
		"dicebattle",
		dicebattle.Domain{},
		func(players []engine.PlayerID) []engine.System[dicebattle.Core] {
			return dicebattle.Systems(players, dicebattle.RulesOptions{Cheats: cfg.CheatsEnabled})
		},
		replays,
	)

	// РЕЖИМ РЕПЛЕЯ: восстановить матч из файла и выйти.
	if replayPath != "" {
		logger.Log.Info("💿 Mode: Replay Simulation")

		inst, err := matches.LoadReplay(replayPath)
		if err != nil {
			logger.Log.Fatal("Failed to load replay: ", err)
		}
		logger.Log.Infof("Replay finished: match %s, %d events in the log", inst.ID, inst.Cursor())
		return
	}

	if cfg.CheatsEnabled {
		logger.Log.Warn("⚡ Cheats are ENABLED - do not run this configuration in production")
	}

	// Бутстрап-матч для разработки: -players p1,p2
	if playersFlag != "" {
		var players []engine.PlayerID
		for _, p := range strings.Split(playersFlag, ",") {
			if p = strings.TrimSpace(p); p != "" {
				players = append(players, engine.PlayerID(p))
			}
		}
		inst, err := matches.Create(players, seed)
		if err != nil {
			logger.Log.Fatal("Failed to create bootstrap match: ", err)
		}
		logger.Log.Infof("Bootstrap match %s ready (seed %d)", inst.ID, inst.Seed)
	}

	// Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 2. Запуск сервера
	srv := server.New(matches, cfg.Port)

	go func() {
		if err := srv.Run(); err != nil {
			logger.Log.Fatal("Server start error: ", err)
		}
	}()

	<-stop
	logger.Log.Info("Shutting down...")

	// Сохраняем реплеи всех живых матчей
	matches.SaveAll()

	logger.Log.Info("Done.")
}
