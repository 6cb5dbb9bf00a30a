// ABOUTME: Entry point for assistant-matrix bridge
// ABOUTME: Connects Matrix rooms to the assistant engine

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
)

const banner = `
    ╭──────────────────────────────────────╮
    │                                      │
    │   ┏┳┓┏━┓╺┳╸┏━┓╻╻ ╻   ┏━┓┏━┓┏━┓╺┳╸   │
    │   ┃┃┃┣━┫ ┃ ┣┳┛┃┏╋┛   ┣━┫┗━┓┗━┓ ┃    │
    │   ╹ ╹╹ ╹ ╹ ╹┗╸╹╹ ╹   ╹ ╹┗━┛┗━┛ ╹    │
    │                                      │
    │        assistant-matrix bridge       │
    │                                      │
    ╰──────────────────────────────────────╯
`

// getConfigPath returns the path to the matrix bridge config file.
// Priority: FOLD_ASSISTANT_MATRIX_CONFIG env var > XDG_CONFIG_HOME/fold/assistant-matrix.toml > ~/.config/fold/assistant-matrix.toml
func getConfigPath() string {
	if envPath := os.Getenv("FOLD_ASSISTANT_MATRIX_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "assistant-matrix.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "fold", "assistant-matrix.toml")
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	configPath := getConfigPath()

	// Load config
	cfg, err := Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	// Print startup info
	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:     %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Homeserver: %s\n", cfg.Matrix.Homeserver)
	green.Print("    ▶ ")
	fmt.Printf("User:       %s\n", cfg.Matrix.UserID)
	green.Print("    ▶ ")
	fmt.Printf("Engine:     %s\n", cfg.Engine.Config)
	fmt.Println()

	// Create bridge
	bridge, cleanup, err := NewBridge(cfg)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	defer cleanup()

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Run bridge
	return bridge.Run(ctx)
}
