package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/corvidfield/storylet-engine/internal/config"
	"github.com/corvidfield/storylet-engine/internal/logger"
	"github.com/corvidfield/storylet-engine/internal/services"
	"github.com/corvidfield/storylet-engine/pkg/deck"
	"github.com/corvidfield/storylet-engine/pkg/loader"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg)

	path := getEnv("DECK_FILE", "deck.jsonc")
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", path, err)
		os.Exit(1)
	}

	d, err := loader.New().Load(data,
		deck.WithSpecificity(cfg.UseSpecificity),
		deck.WithAsyncChunkSize(cfg.AsyncReshuffleCount),
		deck.WithLogger(log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", path, err)
		os.Exit(1)
	}

	log.Info("loaded deck", "path", path, "storylets", d.Len())

	var archive *services.TraceArchive
	if cfg.TraceArchiveRedisURL != "" {
		archive, err = services.NewTraceArchive(cfg.TraceArchiveRedisURL, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect trace archive: %v\n", err)
			os.Exit(1)
		}
		defer archive.Close()
	}

	p := tea.NewProgram(NewConsoleUI(d, path, archive), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error running program: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
