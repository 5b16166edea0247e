package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/abiosoft/ishell/v2"
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/google/uuid"

	"relay/models"
	"relay/store"
	"relay/theme"
	"relay/tools"
)

// localUserID is the acting user for the interactive shell. In a chat
// platform deployment the platform's user id takes its place.
const localUserID = "local"

func main() {
	theme.InitializeTheme()

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := newLogger(cfg.Debug)

	st, err := store.Open(filepath.Join(relayDir(), "relay.db"))
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	agent, err := NewAgent(cfg, st, logger)
	if err != nil {
		log.Fatalf("Failed to build agent: %v", err)
	}
	handler := NewErrorHandler(cfg.Debug)

	agent.OnToolResult = func(name, input string, res tools.Result) {
		line := "⚙ " + name
		if res.IsError {
			line += " (failed)"
		}
		fmt.Println(theme.ToolText(line))
	}

	shell := ishell.New()
	shell.SetPrompt(theme.PromptText("> "))
	shell.Println(theme.AgentText("relay: chat across model providers. Type to chat; 'help' lists commands."))
	registerCommands(shell, agent, handler)
	shell.NotFound(func(c *ishell.Context) {
		input := strings.TrimSpace(strings.Join(c.Args, " "))
		if input == "" {
			return
		}
		chatTurn(c, agent, handler, input)
	})

	shell.Run()

	if err := st.Close(); err != nil {
		log.Printf("Failed to close store: %v", err)
	}
}

func newLogger(debug bool) logr.Logger {
	verbosity := 0
	if debug {
		verbosity = 1
	}
	return funcr.New(func(prefix, args string) {
		log.Printf("%s %s", prefix, args)
	}, funcr.Options{Verbosity: verbosity})
}

// chatTurn appends the user's message, runs the agentic loop and persists
// the assistant's answer with its accounting fields.
func chatTurn(c *ishell.Context, agent *Agent, handler *ErrorHandler, input string) {
	user, err := agent.store.EnsureUser(localUserID)
	if err != nil {
		c.Println(theme.ErrorText(handler.HandleCommandError("loading user", err)))
		return
	}
	convID, err := agent.store.ActiveConversation(localUserID)
	if err != nil {
		c.Println(theme.ErrorText(handler.HandleCommandError("opening conversation", err)))
		return
	}

	if err := agent.store.Append(convID, models.Message{
		ID:        uuid.New().String(),
		Role:      models.RoleUser,
		Content:   input,
		Timestamp: time.Now(),
	}); err != nil {
		c.Println(theme.ErrorText(handler.HandleCommandError("saving message", err)))
		return
	}

	start := time.Now()
	resp, err := agent.GenerateResponse(context.Background(), convID, agent.preferredAlias(user))
	if err != nil {
		c.Println(theme.ErrorText(handler.HandleLoopError(err)))
		return
	}

	c.Println(theme.AgentText(resp.Content))
	c.Println(theme.DebugText(fmt.Sprintf("%s · %d in / %d out tokens", resp.Model, resp.InputTokens, resp.OutputTokens)))

	if err := agent.store.Append(convID, models.Message{
		ID:           uuid.New().String(),
		Role:         models.RoleAssistant,
		Content:      resp.Content,
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		LatencyMs:    time.Since(start).Milliseconds(),
		Timestamp:    time.Now(),
	}); err != nil {
		c.Println(theme.ErrorText(handler.HandleCommandError("saving answer", err)))
	}
}
