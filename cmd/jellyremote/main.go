package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jellyremote/jellyremote/internal/app"
	"github.com/jellyremote/jellyremote/internal/config"
)

func main() {
	cfgPath := flag.String("config", "", "Path to the settings file (default: user config dir)")
	server := flag.String("server", "", "Server base URL, overrides the saved setting")
	token := flag.String("token", "", "API token, overrides the saved setting")
	debugLog := flag.String("debug", "", "Write a debug log to this file")
	flag.Parse()

	if *debugLog != "" {
		f, err := tea.LogToFile(*debugLog, "jellyremote")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
	}

	path := *cfgPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Flag overrides are session-scoped; they are not written back.
	if *server != "" {
		cfg.ServerURL = *server
	}
	if *token != "" {
		cfg.Token = *token
	}

	m := app.New(cfg, path)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
