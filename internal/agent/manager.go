// ABOUTME: Builds and tracks the named agents defined in configuration.
// ABOUTME: Runs single chat exchanges, loading and saving history through the store.

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bluepigwx/agentlite/internal/config"
	"github.com/bluepigwx/agentlite/internal/store"
)

// ErrAgentNotFound indicates the specified agent was not found.
var ErrAgentNotFound = errors.New("agent not found")

// ErrNoActiveAgents indicates the deployment defines no usable agent.
var ErrNoActiveAgents = errors.New("no active agents configured")

// Agent is one configured assistant: a system prompt bound to a completer.
type Agent struct {
	Name         string
	SystemPrompt string
	ModelName    string

	completer Completer
}

// Info is the public description of a configured agent.
type Info struct {
	Name      string `json:"name"`
	ModelName string `json:"model_name"`
	Active    bool   `json:"active"`
}

// Manager holds all configured agents and executes chat exchanges.
type Manager struct {
	agents map[string]*Agent
	active []string
	store  store.Store
	logger *slog.Logger
}

// NewManager builds agents from config. Each agent's model reference is
// resolved to a Completer; an unresolvable reference fails startup.
func NewManager(cfg *config.Config, st store.Store, logger *slog.Logger) (*Manager, error) {
	m := &Manager{
		agents: make(map[string]*Agent),
		active: cfg.ActiveAgents,
		store:  st,
		logger: logger.With("component", "agent"),
	}

	for name, ac := range cfg.Agents {
		completer, modelName, err := buildCompleter(cfg, ac)
		if err != nil {
			return nil, fmt.Errorf("building agent %q: %w", name, err)
		}
		m.agents[name] = &Agent{
			Name:         name,
			SystemPrompt: ac.SystemPrompt,
			ModelName:    modelName,
			completer:    completer,
		}
	}

	m.logger.Info("agents initialized", "count", len(m.agents), "active", m.active)
	return m, nil
}

func buildCompleter(cfg *config.Config, ac config.AgentConfig) (Completer, string, error) {
	if ac.Model == "" {
		return &EchoCompleter{}, "echo", nil
	}

	mc, err := cfg.GetModel(ac.Model)
	if err != nil {
		return nil, "", err
	}

	switch mc.Provider {
	case "openai":
		return NewOpenAICompleter(mc.BaseURL, mc.APIKey, mc.ModelName), mc.ModelName, nil
	case "echo":
		return &EchoCompleter{}, mc.ModelName, nil
	default:
		return nil, "", fmt.Errorf("unknown model provider %q", mc.Provider)
	}
}

// Get returns a configured agent by name.
func (m *Manager) Get(name string) (*Agent, error) {
	a, ok := m.agents[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return a, nil
}

// Default returns the first active agent, the one the chat command uses.
func (m *Manager) Default() (*Agent, error) {
	if len(m.active) == 0 {
		return nil, ErrNoActiveAgents
	}
	return m.Get(m.active[0])
}

// List describes all configured agents.
func (m *Manager) List() []Info {
	activeSet := make(map[string]bool, len(m.active))
	for _, name := range m.active {
		activeSet[name] = true
	}

	infos := make([]Info, 0, len(m.agents))
	for name, a := range m.agents {
		infos = append(infos, Info{
			Name:      name,
			ModelName: a.ModelName,
			Active:    activeSet[name],
		})
	}
	return infos
}

// Chat runs one exchange with the named agent: prior history is loaded from
// the store, the completion is produced, and both turns are persisted.
// Returns the agent's reply.
func (m *Manager) Chat(ctx context.Context, agentName, conversationID, userMessage string) (string, error) {
	a, err := m.Get(agentName)
	if err != nil {
		return "", err
	}

	history, err := m.store.Messages(ctx, conversationID)
	if err != nil && !errors.Is(err, store.ErrConversationNotFound) {
		return "", fmt.Errorf("loading history: %w", err)
	}

	reply, err := a.completer.Complete(ctx, a.SystemPrompt, history, userMessage)
	if err != nil {
		return "", fmt.Errorf("agent %q completion: %w", agentName, err)
	}

	if err := m.store.AppendMessage(ctx, conversationID, store.RoleUser, userMessage); err != nil {
		return "", fmt.Errorf("saving user message: %w", err)
	}
	if err := m.store.AppendMessage(ctx, conversationID, store.RoleAssistant, reply); err != nil {
		return "", fmt.Errorf("saving assistant message: %w", err)
	}

	m.logger.Info("chat exchange complete",
		"agent", agentName,
		"conversation_id", conversationID,
		"reply_len", len(reply),
	)
	return reply, nil
}
