package responder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"orbit/pkg/actor"
	"orbit/pkg/config"
	"orbit/pkg/llm"
	"orbit/pkg/registry"
)

// Deps are the shared resources every configured responder draws on.
type Deps struct {
	Generator llm.Generator
	Digester  Digester
	System    *config.SystemConfig
}

// New builds the Responder described by rc.
func New(rc config.ResponderConfig, deps Deps) (Responder, error) {
	instruction, err := loadInstruction(rc)
	if err != nil {
		return nil, err
	}
	timeout := deps.System.BackendTimeout()

	switch rc.Kind {
	case config.KindOrbit:
		if rc.FrameworkRepo == "" {
			return nil, fmt.Errorf("responder %q: framework_repo is required", rc.Name)
		}
		return &Orbit{
			Generator:   deps.Generator,
			Digester:    deps.Digester,
			Repo:        rc.FrameworkRepo,
			Instruction: instruction,
			Timeout:     timeout,
		}, nil
	case config.KindTroubleshooting:
		if len(rc.Repos) == 0 {
			return nil, fmt.Errorf("responder %q: repos is required", rc.Name)
		}
		return &Troubleshooting{
			Generator:     deps.Generator,
			Digester:      deps.Digester,
			Repos:         rc.Repos,
			Instruction:   instruction,
			Timeout:       timeout,
			MaxChunkChars: deps.System.MaxChunkChars,
		}, nil
	case config.KindPrompt:
		if strings.TrimSpace(instruction) == "" {
			return nil, fmt.Errorf("responder %q: %w", rc.Name, errNoInstruction)
		}
		return &Prompt{Generator: deps.Generator, Instruction: instruction, Timeout: timeout}, nil
	default:
		return nil, fmt.Errorf("responder %q: unknown kind %q", rc.Name, rc.Kind)
	}
}

func loadInstruction(rc config.ResponderConfig) (string, error) {
	if rc.InstructionFile == "" {
		return rc.Instruction, nil
	}
	raw, err := os.ReadFile(rc.InstructionFile)
	if err != nil {
		return "", fmt.Errorf("responder %q: read instruction: %w", rc.Name, err)
	}
	return string(raw), nil
}

// PoolFor returns the pool shape responders run with.
func PoolFor(sys *config.SystemConfig) *actor.PoolConfig {
	return &actor.PoolConfig{
		Min:         sys.ResponderPoolMin,
		Max:         sys.ResponderPoolMax,
		IdleTimeout: sys.ResponderIdle(),
	}
}

// Register builds every entry of cfgs and registers it. Names already in
// the registry are left untouched. It returns the names that were added.
func Register(reg *registry.Registry, cfgs []config.ResponderConfig, deps Deps) []string {
	opts := Options{
		Pool:    PoolFor(deps.System),
		Restart: actor.RestartPolicy{MaxRestarts: deps.System.MaxRestarts, Window: deps.System.RestartWindow()},
	}

	var added []string
	for _, rc := range cfgs {
		if _, exists := reg.Get(rc.Name); exists {
			continue
		}
		r, err := New(rc, deps)
		if err != nil {
			slog.Error("Skipping responder", "name", rc.Name, "error", err)
			continue
		}
		if reg.Register(rc.Name, Props(rc.Name, func() Responder { return r }, opts), rc.Description) {
			slog.Info("Responder registered", "name", rc.Name, "kind", rc.Kind)
			added = append(added, rc.Name)
		}
	}
	return added
}
