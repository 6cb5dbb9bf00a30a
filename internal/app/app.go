// ABOUTME: Assembles the engine stack from loaded configuration.
// ABOUTME: Shared by every binary that hosts the engine in-process.

// Package app builds a ready-to-use engine from a config.Config. Front
// ends supply their transport and get back the wired engine plus a
// cleanup that closes the store.
package app

import (
	"fmt"
	"log/slog"
	"path/filepath"

	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"

	"github.com/2389/fold-assistant/internal/ai/openaiclient"
	"github.com/2389/fold-assistant/internal/config"
	"github.com/2389/fold-assistant/internal/constraints"
	"github.com/2389/fold-assistant/internal/extract"
	"github.com/2389/fold-assistant/internal/money"
	"github.com/2389/fold-assistant/internal/run"
	"github.com/2389/fold-assistant/internal/session"
	"github.com/2389/fold-assistant/internal/store"
	"github.com/2389/fold-assistant/internal/tokens"
	"github.com/2389/fold-assistant/internal/tools"
	"github.com/2389/fold-assistant/internal/transport"
)

// Build wires the full engine from the loaded config. The returned
// cleanup closes the store and must run at shutdown.
func Build(cfg *config.Config, tp transport.Transport, mailer tools.Mailer, logger *slog.Logger) (*session.Engine, func() error, error) {
	pricing, err := PricingFromConfig(cfg.Pricing)
	if err != nil {
		return nil, nil, fmt.Errorf("building price table: %w", err)
	}
	managerCfg, err := managerConfigFrom(cfg.Session)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	counter := tokens.NewCounter(cfg.Assistant.Model)
	client := openaiclient.New(clientConfigFrom(cfg.Assistant))

	registry := tools.NewRegistry(logger)
	if err := registry.Register(tools.NewGenerateImage(client, tp, st, pricing, counter, logger)); err != nil {
		st.Close()
		return nil, nil, err
	}
	if err := registry.Register(tools.NewSendEmail(mailer, tp, logger)); err != nil {
		st.Close()
		return nil, nil, err
	}

	dispatcher := tools.NewDispatcher(registry, logger)
	runner := run.New(client, dispatcher, tp, st, pricing, counter, runConfigFrom(cfg.Run), nil, logger)
	manager := session.NewManager(st, client, managerCfg, logger)

	engine := session.NewEngine(session.EngineDeps{
		Manager:     manager,
		Store:       st,
		Client:      client,
		Executor:    runner,
		Transport:   tp,
		Pricing:     pricing,
		Counter:     counter,
		Checker:     constraints.NewChecker(),
		Extractor:   extract.Plain{},
		AssistantID: cfg.Assistant.AssistantID,
		Logger:      logger,
	})
	return engine, st.Close, nil
}

// DataDir returns the directory for downloads and the mail outbox,
// beside the database file.
func DataDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Database.Path)
}

// PricingFromConfig applies any configured overrides to the default
// price table.
func PricingFromConfig(pc config.PricingConfig) (money.Pricing, error) {
	overrides := make(map[money.ResourceKind]string, len(pc.UnitPrices))
	for name, price := range pc.UnitPrices {
		overrides[money.ResourceKind(name)] = price
	}
	return money.DefaultPricing().WithOverrides(overrides, pc.Margin, pc.MinimumCharge)
}

// runConfigFrom overlays configured run timings onto the defaults.
func runConfigFrom(rc config.RunConfig) run.Config {
	out := run.DefaultConfig()
	if rc.PollInterval > 0 {
		out.PollInterval = rc.PollInterval
	}
	if rc.MaxRunDuration > 0 {
		out.MaxRunDuration = rc.MaxRunDuration
	}
	if rc.ShortMessageThreshold > 0 {
		out.ShortMessageThreshold = rc.ShortMessageThreshold
	}
	if rc.VoiceReplyChance > 0 {
		out.VoiceReplyChance = rc.VoiceReplyChance
	}
	return out
}

// managerConfigFrom overlays configured session settings onto the
// defaults.
func managerConfigFrom(sc config.SessionConfig) (session.ManagerConfig, error) {
	out := session.DefaultManagerConfig()
	if sc.ThreadTTL > 0 {
		out.ThreadTTL = sc.ThreadTTL
	}
	if sc.InitialBalance != "" {
		balance, err := decimal.NewFromString(sc.InitialBalance)
		if err != nil {
			return out, fmt.Errorf("parsing initial_balance %q: %w", sc.InitialBalance, err)
		}
		out.InitialBalance = balance
	}
	return out, nil
}

// clientConfigFrom builds the adapter settings, falling back to the
// adapter defaults for unset models.
func clientConfigFrom(ac config.AssistantConfig) openaiclient.Config {
	out := openaiclient.DefaultConfig(ac.APIKey)
	if ac.Model != "" {
		out.ChatModel = ac.Model
	}
	if ac.VoiceModel != "" {
		out.SpeechModel = openai.SpeechModel(ac.VoiceModel)
	}
	if ac.Voice != "" {
		out.SpeechVoice = openai.SpeechVoice(ac.Voice)
	}
	if ac.ImageModel != "" {
		out.ImageModel = ac.ImageModel
	}
	return out
}
