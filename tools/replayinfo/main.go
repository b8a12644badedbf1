package main

import (
	"fmt"
	"os"
	"time"

	"boardgame-server/internal/infrastructure/storage"
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		return
	}

	switch os.Args[1] {
	case "info":
		if len(os.Args) < 3 {
			fmt.Println("Usage: replayinfo info <file.bgrp>")
			return
		}
		session, err := load(os.Args[2])
		if err != nil {
			fmt.Printf("Failed to read replay: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Game:     %s\n", session.GameID)
		fmt.Printf("Seed:     %d\n", session.Seed)
		fmt.Printf("Created:  %s\n", time.UnixMilli(session.Timestamp).Format(time.RFC3339))
		fmt.Printf("Players:  %v\n", session.Players)
		fmt.Printf("Commands: %d\n", len(session.Commands))
	case "commands":
		if len(os.Args) < 3 {
			fmt.Println("Usage: replayinfo commands <file.bgrp>")
			return
		}
		session, err := load(os.Args[2])
		if err != nil {
			fmt.Printf("Failed to read replay: %v\n", err)
			os.Exit(1)
		}
		for i, cmd := range session.Commands {
			fmt.Printf("%4d  %-20s %-10s %s\n", i, cmd.Type, cmd.PlayerID, cmd.Payload)
		}
	default:
		printHelp()
	}
}

func load(path string) (*storage.ReplaySession, error) {
	svc := storage.NewReplayService("")
	return svc.Load(path)
}

func printHelp() {
	fmt.Println(`Replay Inspector - просмотр .bgrp файлов реплеев
Commands:
  info <file>      - заголовок реплея: игра, сид, состав, число команд
  commands <file>  - список записанных команд по порядку`)
}
