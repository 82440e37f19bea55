package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"orbit/pkg/actor"
	"orbit/pkg/config"
	"orbit/pkg/intent"
	"orbit/pkg/llm"
	"orbit/pkg/orchestrator"
	"orbit/pkg/registry"
	"orbit/pkg/repo"
	"orbit/pkg/responder"
)

// shutdownGrace bounds how long actors get to stop on exit.
const shutdownGrace = 5 * time.Second

// app holds every long-lived component of one router process.
type app struct {
	cfg      *config.Config
	system   *config.SystemConfig
	actors   *actor.System
	registry *registry.Registry
	deps     responder.Deps
	router   *orchestrator.Router
}

// newApp wires backend, registry, classifier and orchestrator pool. gen may
// be nil, in which case it is built from cfg.LLM.
func newApp(cfg *config.Config, system *config.SystemConfig, reg *registry.Registry, gen llm.Generator) (*app, error) {
	if gen == nil {
		var err error
		if gen, err = llm.NewFromConfig(cfg.LLM, system); err != nil {
			return nil, fmt.Errorf("init backend: %w", err)
		}
	}

	instruction, err := classifierInstruction(cfg.IntentInstructionFile)
	if err != nil {
		return nil, err
	}

	actors := actor.NewSystem(actor.Options{MailboxSize: system.MailboxSize})
	a := &app{
		cfg:      cfg,
		system:   system,
		actors:   actors,
		registry: reg,
		deps: responder.Deps{
			Generator: gen,
			Digester:  &repo.Digester{MaxFileBytes: system.MaxFileBytes, CacheDir: system.RepoCacheDir},
			System:    system,
		},
	}

	added := responder.Register(reg, cfg.Responders, a.deps)
	if reg.Len() == 0 {
		slog.Warn("No responders registered, every question will get the fallback answer")
	}
	slog.Info("Responders ready", "added", len(added), "total", reg.Len())

	classifier := intent.NewClassifier(gen, instruction, system.BackendTimeout())
	a.router, err = orchestrator.NewRouter(actors, reg, intent.Name,
		intent.Props(classifier, reg, responder.PoolFor(system)),
		orchestrator.RouterOptions{
			Pool: actor.PoolConfig{
				Min:         system.OrchestratorPoolMin,
				Max:         system.OrchestratorPoolMax,
				IdleTimeout: system.OrchestratorIdle(),
			},
			Restart:        actor.RestartPolicy{MaxRestarts: system.MaxRestarts, Window: system.RestartWindow()},
			DefaultTimeout: system.AskTimeout(),
		})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func classifierInstruction(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read intent instruction: %w", err)
	}
	return string(raw), nil
}

// reload re-reads the app config and registers responders it did not know
// yet. Existing registrations are never replaced.
func (a *app) reload(path string) []string {
	cfg, err := config.LoadApp(path)
	if err != nil {
		slog.Error("Ignoring config change", "file", path, "error", err)
		return nil
	}
	added := responder.Register(a.registry, cfg.Responders, a.deps)
	if len(added) > 0 {
		slog.Info("New responders registered", "names", added)
	}
	return added
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := a.actors.Shutdown(ctx); err != nil {
		slog.Warn("Actor shutdown incomplete", "error", err)
	}
}
