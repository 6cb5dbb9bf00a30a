// ABOUTME: Entry point for the fold-assistant daemon
// ABOUTME: Wires the engine from YAML config and serves a console front end

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/fold-assistant/internal/app"
	"github.com/2389/fold-assistant/internal/config"
	"github.com/2389/fold-assistant/internal/localize"
	"github.com/2389/fold-assistant/internal/session"
)

const banner = `
    ╭──────────────────────────────────────╮
    │                                      │
    │   ┏━╸┏━┓╻  ╺┳┓   ┏━┓┏━┓┏━┓╺┳╸       │
    │   ┣╸ ┃ ┃┃   ┃┃   ┣━┫┗━┓┗━┓ ┃        │
    │   ╹  ┗━┛┗━╸╺┻┛   ╹ ╹┗━┛┗━┛ ╹        │
    │                                      │
    │          fold-assistant              │
    │                                      │
    ╰──────────────────────────────────────╯
`

// consoleUserID identifies the local operator's conversation.
const consoleUserID = 1

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", *configPath, err)
	}

	logger, closeLog := config.SetupLogger(cfg.Logging)
	defer closeLog()

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", *configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Assistant: %s\n", cfg.Assistant.AssistantID)
	fmt.Println()

	tp := newConsoleTransport(os.Stdout, app.DataDir(cfg), logger)
	mailer := app.NewOutboxMailer(filepath.Join(app.DataDir(cfg), "outbox"), logger)

	engine, cleanup, err := app.Build(cfg, tp, mailer, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("fold-assistant running", "assistant_id", cfg.Assistant.AssistantID)
	return console(ctx, engine)
}

// console reads lines from stdin and routes them through the engine
// until EOF or shutdown.
func console(ctx context.Context, engine *session.Engine) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("> ")
			continue
		}

		in := session.Inbound{
			UserID:   consoleUserID,
			ChatID:   "console",
			Username: localUsername(),
			Text:     line,
		}

		var err error
		switch line {
		case "/quit", "/exit":
			fmt.Println(localize.Printer("").Sprintf(localize.MsgGoodbye))
			return nil
		case "/balance":
			err = engine.HandleBalance(ctx, in)
		default:
			err = engine.HandleText(ctx, in)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		fmt.Print("> ")
	}
	return scanner.Err()
}

func localUsername() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "operator"
}
