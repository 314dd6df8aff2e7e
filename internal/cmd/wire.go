package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/parley-dev/parley/internal/action"
	"github.com/parley-dev/parley/internal/agent"
	"github.com/parley-dev/parley/internal/chat"
	"github.com/parley-dev/parley/internal/config"
	"github.com/parley-dev/parley/internal/conversation"
	"github.com/parley-dev/parley/internal/correction"
	"github.com/parley-dev/parley/internal/dispatch"
	"github.com/parley-dev/parley/internal/logging"
	"github.com/parley-dev/parley/internal/snapshot"
	"github.com/parley-dev/parley/internal/trace"
)

// buildHub assembles the full engine from configuration. The returned
// cleanup closes the hub, logger, and trace sink.
func buildHub(cfg *config.Config, executor action.Executor) (*conversation.Hub, func(), error) {
	roster, err := loadRoster(cfg)
	if err != nil {
		return nil, nil, err
	}
	if roster.Len() == 0 {
		return nil, nil, fmt.Errorf("no agents configured; add them to %s", agentsFile(cfg))
	}

	logDir := ""
	if cfg.Logging.Enabled {
		logDir = cfg.StateDir()
	}
	logger, err := logging.NewLogger(logDir, logging.ParseLevel(cfg.Logging.Level))
	if err != nil {
		return nil, nil, fmt.Errorf("open logger: %w", err)
	}

	recorder, err := trace.NewRecorder(cfg.StateDir(), trace.WithCapacity(cfg.Conversation.TraceCapacity))
	if err != nil {
		logger.Close()
		return nil, nil, fmt.Errorf("open trace recorder: %w", err)
	}

	providers := dispatch.NewProviderRegistry()
	credentials := dispatch.NewMemoryCredentials()
	for name, cred := range cfg.Providers.Credentials {
		providers.Register(dispatch.NewOpenAIProvider(name, ""))
		credentials.Set(name, cred)
	}

	var runtime dispatch.RuntimeClient
	if cfg.Runtime.URL != "" {
		runtime = dispatch.NewWebSocketRuntime(cfg.Runtime.URL)
	}

	dispatcher := dispatch.NewDispatcher(providers, credentials, runtime, recorder,
		dispatch.WithLogger(logger))

	messages := chat.NewStore()

	var managerOpts []action.ManagerOption
	managerOpts = append(managerOpts, action.WithLogger(logger))
	if len(cfg.Actions.PathAllowlist) > 0 {
		allow, err := action.WithPathAllowlist(cfg.Actions.PathAllowlist)
		if err != nil {
			logger.Close()
			return nil, nil, err
		}
		managerOpts = append(managerOpts, allow)
	}
	actions := action.NewManager(executor, managerOpts...)

	corrections := correction.NewPipeline(messages, roster,
		correction.WithReviewer(cfg.Conversation.Reviewer),
		correction.WithLogger(logger))

	hub := conversation.NewHub(conversation.Deps{
		Roster:      roster,
		Dispatcher:  dispatcher,
		Messages:    messages,
		Snapshots:   snapshot.NewStore(snapshot.New()),
		Actions:     actions,
		Corrections: corrections,
		Recorder:    recorder,
	},
		conversation.WithStrategy(cfg.Conversation.Strategy),
		conversation.WithStateDir(cfg.StateDir()),
		conversation.WithLogger(logger),
	)

	if err := hub.Restore(); err != nil {
		logger.Warn("failed to restore persisted state", "error", err.Error())
	}

	cleanup := func() {
		hub.Close()
		_ = recorder.Close()
		_ = logger.Close()
	}
	return hub, cleanup, nil
}

// loadRoster reads the agent catalog and overlays role assignments.
func loadRoster(cfg *config.Config) (*agent.Roster, error) {
	roster, err := agent.LoadRoster(agentsFile(cfg))
	if err != nil {
		return nil, err
	}

	roles, err := agent.LoadRoles(rolesFile(cfg))
	if err != nil {
		return nil, err
	}
	return agent.NewRoster(agent.ApplyRoles(roster.All(), roles)), nil
}

func agentsFile(cfg *config.Config) string {
	if cfg.Paths.AgentsFile != "" {
		return cfg.Paths.AgentsFile
	}
	return filepath.Join(config.ConfigDir(), "agents.yaml")
}

func rolesFile(cfg *config.Config) string {
	if cfg.Paths.RolesFile != "" {
		return cfg.Paths.RolesFile
	}
	return filepath.Join(config.ConfigDir(), "roles.yaml")
}
