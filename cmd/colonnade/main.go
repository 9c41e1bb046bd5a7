package main

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/colonnade-fm/colonnade/internal/app"
	"github.com/colonnade-fm/colonnade/internal/config"
	"github.com/colonnade-fm/colonnade/internal/debug"
	"github.com/colonnade-fm/colonnade/internal/fs"
	"github.com/colonnade-fm/colonnade/internal/store"
	"github.com/colonnade-fm/colonnade/internal/tui"
)

func main() {
	verbose := flag.Bool("debug", false, "Enable verbose debug logging")
	flag.Parse()

	if *verbose {
		debug.EnableAll()
	}

	home, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("cannot determine home directory: %v", err)
	}

	cfgMgr := config.NewManager()
	if err := cfgMgr.Load(); err != nil {
		log.Printf("config load failed, using defaults: %v", err)
	}
	if perr := cfgMgr.ParseError(); perr != nil {
		fmt.Fprintf(os.Stderr, "warning: config file is invalid, running with defaults: %v\n", perr)
	}

	db := store.NewDB()
	dbPath := config.ConfigPath()
	dbPath = strings.TrimSuffix(dbPath, "config.json") + "colonnade.db"
	if err := db.Open(dbPath); err != nil {
		log.Printf("store unavailable, favorites and history disabled: %v", err)
		db = nil
	} else {
		go db.Start()
		defer db.Close()
	}

	deps := &app.SharedDeps{
		Gateway:  fs.NewGateway(),
		Store:    db,
		Config:   cfgMgr,
		HomePath: home,
	}

	controller := app.NewController(deps)
	defer controller.Close()

	start := startPath(flag.Arg(0), cfgMgr.Get(), home)
	if err := controller.OpenRoot(start); err != nil {
		// Fall back to home so the browser always opens somewhere
		if start != home {
			controller.OpenRoot(home)
		}
	}

	program := tea.NewProgram(tui.New(controller), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		log.Fatal(err)
	}

	if cfgMgr.Get().Browse.RestoreLastPath {
		cfgMgr.SetStartPath(controller.Snapshot().CurrentPath)
	}
}

// startPath resolves the initial directory: a command line argument
// (plain path or file:// URI) wins, then the configured start path,
// then the home directory.
func startPath(arg string, cfg config.Config, home string) string {
	if arg != "" {
		if strings.HasPrefix(arg, "file://") {
			trimmed := strings.TrimPrefix(arg, "file://")
			if decoded, err := url.PathUnescape(trimmed); err == nil {
				return decoded
			}
			return trimmed
		}
		return arg
	}
	if cfg.Browse.StartPath != "" {
		return cfg.Browse.StartPath
	}
	return home
}
