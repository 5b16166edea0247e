package main

import (
	"context"
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"relay/api"
	"relay/models"
	"relay/store"
	"relay/tools"
)

//go:embed system_prompt.md
var systemPromptTemplate string

const (
	// maxToolRounds caps tool-execution rounds per loop invocation. After the
	// last round one further inference may answer in plain text; tool calls
	// on that response end the run instead. Bounds cost and latency against a
	// confused model, not transient errors: those surface immediately.
	maxToolRounds = 3

	loopFallback = "I ran into a tool loop and had to stop. Please try rephrasing your request."

	toolPromptSuffix = "\n\nYou have tools for listing and switching chat models, " +
		"resetting the conversation, and searching the remote model catalog. " +
		"Use them when the user asks about models or wants to start over; " +
		"answer directly otherwise."
)

// Agent wires the model router, the two provider clients, the tool registry
// and the store into one loop driver. One Agent serves many conversations;
// each GenerateResponse call runs its own arena-scoped tool context.
type Agent struct {
	config  *Config
	store   *store.Store
	models  *models.Registry
	tools   *tools.Registry
	catalog *tools.Catalog
	clients map[string]api.Client
	log     logr.Logger

	// OnToolResult, when set, is copied into every run's tool context. It is
	// a pure observation hook for the CLI and tests.
	OnToolResult func(name, input string, res tools.Result)
}

// NewAgent builds the agent from config. The tool registry is assembled here
// once and never mutated afterwards.
func NewAgent(cfg *Config, st *store.Store, log logr.Logger) (*Agent, error) {
	registry := models.NewRegistry(cfg.Models)

	catalog := tools.NewCatalog(
		filepath.Join(relayDir(), "models_catalog.json"),
		cfg.CatalogBaseURL,
		resolveAPIKey(cfg.CatalogAPIKey),
		log.WithName("catalog"),
	)

	toolRegistry, err := tools.NewRegistry(log.WithName("tools"),
		tools.NewListModelsTool(registry),
		tools.NewSwitchModelTool(registry, catalog),
		tools.NewResetConversationTool(),
		tools.NewCatalogRefreshTool(catalog),
		tools.NewCatalogSearchTool(catalog),
	)
	if err != nil {
		return nil, fmt.Errorf("building tool registry: %w", err)
	}

	clients := map[string]api.Client{
		models.FamilyAnthropic: api.NewAnthropicClient(resolveAPIKey(cfg.AnthropicAPIKey)),
		models.FamilyOpenAI:    api.NewOpenAIClient(resolveAPIKey(cfg.OpenAIAPIKey), cfg.OpenAIBaseURL),
	}

	return &Agent{
		config:  cfg,
		store:   st,
		models:  registry,
		tools:   toolRegistry,
		catalog: catalog,
		clients: clients,
		log:     log,
	}, nil
}

// GenerateResponse runs one agentic loop turn over the stored conversation
// history. The final assistant message is returned, not persisted; the
// caller owns that write.
func (a *Agent) GenerateResponse(ctx context.Context, conversationID int64, alias string) (*models.AIResponse, error) {
	owner, err := a.store.ConversationOwner(conversationID)
	if err != nil {
		return nil, fmt.Errorf("looking up conversation %d: %w", conversationID, err)
	}
	user, err := a.store.EnsureUser(owner)
	if err != nil {
		return nil, err
	}
	history, err := a.store.History(conversationID)
	if err != nil {
		return nil, err
	}

	tc := &tools.Context{
		User:           user,
		ConversationID: conversationID,
		Users:          a.store,
		Conversations:  a.store,
		OnToolResult:   a.OnToolResult,
	}
	return a.runLoop(ctx, alias, history, tc)
}

// runLoop drives inference and tool execution until the model answers in
// plain text or the round cap is hit. A nil tool context disables tools for
// the run. Configuration problems fail before any network call; provider
// errors abort the invocation; tool failures never do.
func (a *Agent) runLoop(ctx context.Context, alias string, history []models.Message, tc *tools.Context) (*models.AIResponse, error) {
	m, err := a.models.Resolve(alias)
	if err != nil {
		return nil, err
	}
	if !m.Enabled {
		return nil, fmt.Errorf("%w: %s", models.ErrModelDisabled, m.Alias)
	}
	client, ok := a.clients[m.Provider]
	if !ok {
		return nil, fmt.Errorf("no client for provider %q", m.Provider)
	}

	system := a.systemPrompt()
	var defs []tools.Definition
	if tc != nil && a.tools.Len() > 0 {
		defs = a.tools.Definitions()
		system += toolPromptSuffix
	}

	msgs := make([]models.Message, len(history))
	copy(msgs, history)

	var total models.Usage
	lastModel := m.ModelID
	lastText := ""

	for round := 0; ; round++ {
		resp, err := client.Infer(ctx, api.Request{
			Model:    m.ModelID,
			System:   system,
			Messages: msgs,
			Tools:    defs,
		})
		if err != nil {
			return nil, fmt.Errorf("inference failed: %w", err)
		}
		total.Add(resp.Usage)
		if resp.Model != "" {
			lastModel = resp.Model
		}
		lastText = resp.Content

		if len(resp.ToolCalls) == 0 || tc == nil {
			return &models.AIResponse{
				Content:      resp.Content,
				Model:        lastModel,
				InputTokens:  total.InputTokens,
				OutputTokens: total.OutputTokens,
			}, nil
		}
		if round == maxToolRounds {
			// The post-cap inference still wants tools; its calls are
			// discarded and the run ends degraded.
			break
		}

		// Tool calls win over text in the same turn. The text stays on the
		// history turn but never becomes the final answer.
		msgs = append(msgs, models.Message{
			ID:        uuid.New().String(),
			Role:      models.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
			Timestamp: time.Now(),
		})

		// A started tool runs to completion even if the caller cancels:
		// half-applied side effects are worse than a late result.
		execCtx := context.WithoutCancel(ctx)
		for _, call := range resp.ToolCalls {
			res := a.tools.Execute(execCtx, call.Function.Name, call.Function.Arguments, tc)
			msgs = append(msgs, models.Message{
				ID:          uuid.New().String(),
				Role:        models.RoleTool,
				Content:     res.Content,
				ToolCallID:  call.ID,
				ToolName:    call.Function.Name,
				ToolIsError: res.IsError,
				Timestamp:   time.Now(),
			})
		}
	}

	a.log.Info("tool loop exhausted", "model", alias, "rounds", maxToolRounds)
	content := loopFallback
	if lastText != "" {
		content = lastText + "\n\n" + loopFallback
	}
	return &models.AIResponse{
		Content:      content,
		Model:        lastModel,
		InputTokens:  total.InputTokens,
		OutputTokens: total.OutputTokens,
	}, nil
}

func (a *Agent) systemPrompt() string {
	prompt := strings.ReplaceAll(systemPromptTemplate, "{DATE}", time.Now().Format("2006-01-02"))
	return strings.TrimSpace(prompt)
}

// preferredAlias picks the model for a user's turn: their stored preference
// when it still resolves, else the configured default.
func (a *Agent) preferredAlias(user *models.User) string {
	if user != nil && user.PreferredModel != "" {
		if _, err := a.models.Resolve(user.PreferredModel); err == nil {
			return user.PreferredModel
		}
	}
	return a.config.DefaultModel
}
