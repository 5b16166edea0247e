package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/api"
	"relay/models"
	"relay/store"
	"relay/tools"
)

// scriptedClient replays canned responses in order, repeating the last one
// once the script runs out, and records every request it saw.
type scriptedClient struct {
	responses []*api.Response
	requests  []api.Request
}

func (c *scriptedClient) Family() string { return models.FamilyAnthropic }

func (c *scriptedClient) Infer(_ context.Context, req api.Request) (*api.Response, error) {
	c.requests = append(c.requests, req)
	i := len(c.requests) - 1
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	return c.responses[i], nil
}

func testModels() []models.ModelConfig {
	return []models.ModelConfig{
		{Alias: "claude-sonnet", Provider: models.FamilyAnthropic, ModelID: "claude-sonnet-4-20250514", DisplayName: "Claude Sonnet 4", Enabled: true},
		{Alias: "kimi-k2", Provider: models.FamilyOpenAI, ModelID: "moonshotai/kimi-k2", DisplayName: "Kimi K2", Enabled: true},
		{Alias: "gpt-legacy", Provider: models.FamilyOpenAI, ModelID: "gpt-3.5-turbo", DisplayName: "GPT Legacy", Enabled: false},
	}
}

func newTestAgent(t *testing.T, client api.Client) *Agent {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := &Config{DefaultModel: "claude-sonnet", Models: testModels()}
	registry := models.NewRegistry(cfg.Models)
	toolRegistry, err := tools.NewRegistry(logr.Discard(),
		tools.NewListModelsTool(registry),
		tools.NewSwitchModelTool(registry, nil),
		tools.NewResetConversationTool(),
	)
	require.NoError(t, err)

	return &Agent{
		config: cfg,
		store:  st,
		models: registry,
		tools:  toolRegistry,
		clients: map[string]api.Client{
			models.FamilyAnthropic: client,
			models.FamilyOpenAI:    client,
		},
		log: logr.Discard(),
	}
}

func seedConversation(t *testing.T, st *store.Store, text string) int64 {
	t.Helper()
	_, err := st.EnsureUser(localUserID)
	require.NoError(t, err)
	convID, err := st.ActiveConversation(localUserID)
	require.NoError(t, err)
	require.NoError(t, st.Append(convID, models.Message{
		ID:        uuid.New().String(),
		Role:      models.RoleUser,
		Content:   text,
		Timestamp: time.Now(),
	}))
	return convID
}

func toolCallResponse(id, name, args string, usage models.Usage) *api.Response {
	return &api.Response{
		ToolCalls: []models.ToolCall{
			{ID: id, Type: "function", Function: models.FunctionCall{Name: name, Arguments: args}},
		},
		Model: "claude-sonnet-4-20250514",
		Usage: usage,
	}
}

func textResponse(content string, usage models.Usage) *api.Response {
	return &api.Response{Content: content, Model: "claude-sonnet-4-20250514", Usage: usage}
}

func TestGenerateResponsePlainAnswer(t *testing.T) {
	client := &scriptedClient{responses: []*api.Response{
		textResponse("Done.", models.Usage{InputTokens: 10, OutputTokens: 5}),
	}}
	agent := newTestAgent(t, client)
	convID := seedConversation(t, agent.store, "hello")

	resp, err := agent.GenerateResponse(context.Background(), convID, "claude-sonnet")
	require.NoError(t, err)

	assert.Equal(t, "Done.", resp.Content)
	assert.Equal(t, int64(10), resp.InputTokens)
	assert.Equal(t, int64(5), resp.OutputTokens)
	assert.Len(t, client.requests, 1)
}

func TestGenerateResponseToolRoundTrip(t *testing.T) {
	client := &scriptedClient{responses: []*api.Response{
		toolCallResponse("call_1", "list_models", "{}", models.Usage{InputTokens: 10, OutputTokens: 4}),
		textResponse("Done.", models.Usage{InputTokens: 30, OutputTokens: 6}),
	}}
	agent := newTestAgent(t, client)
	convID := seedConversation(t, agent.store, "what models do you have?")

	resp, err := agent.GenerateResponse(context.Background(), convID, "claude-sonnet")
	require.NoError(t, err)
	require.Len(t, client.requests, 2)

	assert.Equal(t, "Done.", resp.Content)
	assert.Equal(t, int64(40), resp.InputTokens)
	assert.Equal(t, int64(10), resp.OutputTokens)

	// The second request must replay the assistant's tool turn and the
	// correlated result.
	msgs := client.requests[1].Messages
	require.GreaterOrEqual(t, len(msgs), 3)
	assistant := msgs[len(msgs)-2]
	result := msgs[len(msgs)-1]

	assert.Equal(t, models.RoleAssistant, assistant.Role)
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, "call_1", assistant.ToolCalls[0].ID)

	assert.Equal(t, models.RoleTool, result.Role)
	assert.Equal(t, "call_1", result.ToolCallID)
	assert.Equal(t, "list_models", result.ToolName)
	assert.False(t, result.ToolIsError)
	assert.Contains(t, result.Content, "claude-sonnet")
}

func TestGenerateResponseLoopCap(t *testing.T) {
	client := &scriptedClient{responses: []*api.Response{
		toolCallResponse("call_x", "list_models", "{}", models.Usage{InputTokens: 7, OutputTokens: 3}),
	}}
	agent := newTestAgent(t, client)
	convID := seedConversation(t, agent.store, "loop forever")

	resp, err := agent.GenerateResponse(context.Background(), convID, "claude-sonnet")
	require.NoError(t, err)

	// Three tool batches, then one last inference that still wants tools.
	assert.Len(t, client.requests, maxToolRounds+1)
	assert.Contains(t, resp.Content, loopFallback)
	assert.Equal(t, int64(28), resp.InputTokens)
	assert.Equal(t, int64(12), resp.OutputTokens)

	// No fourth tool batch: the last request replays exactly three
	// assistant/tool-result exchanges after the user turn.
	last := client.requests[len(client.requests)-1].Messages
	assert.Len(t, last, 1+2*maxToolRounds)
}

func TestGenerateResponseLoopCapKeepsLastText(t *testing.T) {
	withText := toolCallResponse("call_y", "list_models", "{}", models.Usage{})
	withText.Content = "Still looking into it."
	client := &scriptedClient{responses: []*api.Response{withText}}
	agent := newTestAgent(t, client)
	convID := seedConversation(t, agent.store, "loop forever")

	resp, err := agent.GenerateResponse(context.Background(), convID, "claude-sonnet")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.Content, "Still looking into it."))
	assert.True(t, strings.HasSuffix(resp.Content, loopFallback))
}

func TestGenerateResponseToolErrorRecovered(t *testing.T) {
	client := &scriptedClient{responses: []*api.Response{
		toolCallResponse("call_bad", "switch_model", "{not json", models.Usage{}),
		textResponse("Sorry, that did not work.", models.Usage{}),
	}}
	agent := newTestAgent(t, client)
	convID := seedConversation(t, agent.store, "switch please")

	resp, err := agent.GenerateResponse(context.Background(), convID, "claude-sonnet")
	require.NoError(t, err)
	require.Len(t, client.requests, 2)

	result := client.requests[1].Messages[len(client.requests[1].Messages)-1]
	assert.Equal(t, models.RoleTool, result.Role)
	assert.True(t, result.ToolIsError)
	assert.Equal(t, "Sorry, that did not work.", resp.Content)
}

func TestGenerateResponseMixedTextAndToolCalls(t *testing.T) {
	mixed := toolCallResponse("call_m", "list_models", "{}", models.Usage{})
	mixed.Content = "Let me check."
	client := &scriptedClient{responses: []*api.Response{
		mixed,
		textResponse("Here you go.", models.Usage{}),
	}}
	agent := newTestAgent(t, client)
	convID := seedConversation(t, agent.store, "models?")

	resp, err := agent.GenerateResponse(context.Background(), convID, "claude-sonnet")
	require.NoError(t, err)
	require.Len(t, client.requests, 2)

	// The interim text rides along on the history turn but never becomes
	// the answer.
	assert.Equal(t, "Here you go.", resp.Content)
	msgs := client.requests[1].Messages
	assistant := msgs[len(msgs)-2]
	assert.Equal(t, "Let me check.", assistant.Content)
	assert.Len(t, assistant.ToolCalls, 1)
}

func TestGenerateResponseFailsFastBeforeInference(t *testing.T) {
	client := &scriptedClient{responses: []*api.Response{textResponse("never", models.Usage{})}}
	agent := newTestAgent(t, client)
	convID := seedConversation(t, agent.store, "hello")

	_, err := agent.GenerateResponse(context.Background(), convID, "no-such-model")
	assert.ErrorIs(t, err, models.ErrModelNotFound)

	_, err = agent.GenerateResponse(context.Background(), convID, "gpt-legacy")
	assert.ErrorIs(t, err, models.ErrModelDisabled)

	assert.Empty(t, client.requests)
}

func TestSwitchModelEndToEnd(t *testing.T) {
	client := &scriptedClient{responses: []*api.Response{
		toolCallResponse("call_s", "switch_model", `{"model":"kimi-k2"}`, models.Usage{}),
		textResponse("Switched you to Kimi K2.", models.Usage{}),
	}}
	agent := newTestAgent(t, client)
	convID := seedConversation(t, agent.store, "switch to kimi")

	resp, err := agent.GenerateResponse(context.Background(), convID, "claude-sonnet")
	require.NoError(t, err)
	require.Len(t, client.requests, 2)

	result := client.requests[1].Messages[len(client.requests[1].Messages)-1]
	assert.False(t, result.ToolIsError)
	assert.Contains(t, result.Content, `"ok":true`)
	assert.Contains(t, result.Content, "kimi-k2")

	user, err := agent.store.GetUser(localUserID)
	require.NoError(t, err)
	assert.Equal(t, "kimi-k2", user.PreferredModel)
	assert.Equal(t, "Switched you to Kimi K2.", resp.Content)
}

func TestSwitchModelUnknownRecovered(t *testing.T) {
	client := &scriptedClient{responses: []*api.Response{
		toolCallResponse("call_u", "switch_model", `{"model":"nonexistent-model-xyz"}`, models.Usage{}),
		textResponse("I don't know that model.", models.Usage{}),
	}}
	agent := newTestAgent(t, client)
	convID := seedConversation(t, agent.store, "switch to nonexistent-model-xyz")

	resp, err := agent.GenerateResponse(context.Background(), convID, "claude-sonnet")
	require.NoError(t, err)

	result := client.requests[1].Messages[len(client.requests[1].Messages)-1]
	assert.True(t, result.ToolIsError)
	assert.Contains(t, result.Content, "nonexistent-model-xyz")
	assert.Contains(t, result.Content, "claude-sonnet")

	user, err := agent.store.GetUser(localUserID)
	require.NoError(t, err)
	assert.Empty(t, user.PreferredModel)
	assert.Equal(t, "I don't know that model.", resp.Content)
}

func TestOnToolResultObserves(t *testing.T) {
	client := &scriptedClient{responses: []*api.Response{
		toolCallResponse("call_o", "list_models", "{}", models.Usage{}),
		textResponse("Done.", models.Usage{}),
	}}
	agent := newTestAgent(t, client)
	var seen []string
	agent.OnToolResult = func(name, input string, res tools.Result) {
		seen = append(seen, name)
	}
	convID := seedConversation(t, agent.store, "models?")

	_, err := agent.GenerateResponse(context.Background(), convID, "claude-sonnet")
	require.NoError(t, err)
	assert.Equal(t, []string{"list_models"}, seen)
}

func TestPreferredAlias(t *testing.T) {
	agent := newTestAgent(t, &scriptedClient{responses: []*api.Response{textResponse("", models.Usage{})}})

	assert.Equal(t, "claude-sonnet", agent.preferredAlias(nil))
	assert.Equal(t, "claude-sonnet", agent.preferredAlias(&models.User{ID: "u"}))
	assert.Equal(t, "kimi-k2", agent.preferredAlias(&models.User{ID: "u", PreferredModel: "kimi-k2"}))
	assert.Equal(t, "claude-sonnet", agent.preferredAlias(&models.User{ID: "u", PreferredModel: "gone"}))
}
