package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/models"
)

type fakeUserStore struct {
	prefs map[string]string
	err   error
}

func (f *fakeUserStore) SetPreferredModel(userID, alias string) error {
	if f.err != nil {
		return f.err
	}
	if f.prefs == nil {
		f.prefs = map[string]string{}
	}
	f.prefs[userID] = alias
	return nil
}

type fakeConvStore struct {
	archived int
	err      error
}

func (f *fakeConvStore) ArchiveActive(userID string) (int, error) {
	return f.archived, f.err
}

func echoTool(name string) Definition {
	return Definition{
		Name:   name,
		Schema: map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		Func: func(ctx context.Context, raw string, tc *Context) (string, error) {
			return "echo:" + raw, nil
		},
	}
}

func TestNewRegistryValidation(t *testing.T) {
	tests := []struct {
		name string
		defs []Definition
	}{
		{"invalid name", []Definition{{Name: "bad name!", Func: echoTool("x").Func}}},
		{"duplicate", []Definition{echoTool("dup"), echoTool("dup")}},
		{"nil handler", []Definition{{Name: "nohandler"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(logr.Discard(), tt.defs...)
			assert.Error(t, err)
		})
	}
}

func TestRegistryDefinitionsOrder(t *testing.T) {
	r, err := NewRegistry(logr.Discard(), echoTool("alpha"), echoTool("beta"), echoTool("gamma"))
	require.NoError(t, err)
	require.Equal(t, 3, r.Len())

	defs := r.Definitions()
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "beta", defs[1].Name)
	assert.Equal(t, "gamma", defs[2].Name)

	// Mutating the returned slice must not affect the registry.
	defs[0].Name = "mutated"
	assert.Equal(t, "alpha", r.Definitions()[0].Name)
}

func TestExecuteUnknownTool(t *testing.T) {
	r, err := NewRegistry(logr.Discard(), echoTool("known"))
	require.NoError(t, err)

	res := r.Execute(context.Background(), "missing", "{}", nil)
	assert.True(t, res.IsError)
	assert.Equal(t, "unknown tool: missing", res.Content)
}

func TestExecuteHandlerError(t *testing.T) {
	failing := Definition{
		Name:   "failing",
		Schema: map[string]interface{}{},
		Func: func(ctx context.Context, raw string, tc *Context) (string, error) {
			return "", errors.New("backend unavailable")
		},
	}
	r, err := NewRegistry(logr.Discard(), failing)
	require.NoError(t, err)

	res := r.Execute(context.Background(), "failing", "{}", nil)
	assert.True(t, res.IsError)
	assert.Equal(t, "backend unavailable", res.Content)
}

func TestExecuteRecoversPanic(t *testing.T) {
	panicky := Definition{
		Name:   "panicky",
		Schema: map[string]interface{}{},
		Func: func(ctx context.Context, raw string, tc *Context) (string, error) {
			panic("boom")
		},
	}
	r, err := NewRegistry(logr.Discard(), panicky)
	require.NoError(t, err)

	res := r.Execute(context.Background(), "panicky", "{}", nil)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "boom")
}

func TestExecuteCallbackFiresBeforeReturn(t *testing.T) {
	r, err := NewRegistry(logr.Discard(), echoTool("observed"))
	require.NoError(t, err)

	var events []string
	tc := &Context{
		User: &models.User{ID: "u1"},
		OnToolResult: func(name, input string, res Result) {
			events = append(events, fmt.Sprintf("%s:%s:%v", name, res.Content, res.IsError))
		},
	}

	res := r.Execute(context.Background(), "observed", `{"k":1}`, tc)
	events = append(events, "returned")

	assert.False(t, res.IsError)
	require.Len(t, events, 2)
	assert.Equal(t, `observed:echo:{"k":1}:false`, events[0])
	assert.Equal(t, "returned", events[1])
}

func TestExecuteCallbackSeesFailures(t *testing.T) {
	r, err := NewRegistry(logr.Discard(), echoTool("known"))
	require.NoError(t, err)

	var seen *Result
	tc := &Context{OnToolResult: func(name, input string, res Result) { seen = &res }}

	r.Execute(context.Background(), "missing", "", tc)
	require.NotNil(t, seen)
	assert.True(t, seen.IsError)
}

func TestResetConversationTool(t *testing.T) {
	def := NewResetConversationTool()

	convs := &fakeConvStore{archived: 2}
	tc := &Context{User: &models.User{ID: "u1"}, Conversations: convs}
	out, err := def.Func(context.Background(), "{}", tc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"archived":2}`, out)

	_, err = def.Func(context.Background(), "{}", nil)
	assert.Error(t, err)

	convs.err = errors.New("db locked")
	_, err = def.Func(context.Background(), "{}", tc)
	assert.Error(t, err)
}

func TestListModelsTool(t *testing.T) {
	registry := models.NewRegistry([]models.ModelConfig{
		{Alias: "claude-sonnet", Provider: models.FamilyAnthropic, ModelID: "claude-sonnet-4", DisplayName: "Claude Sonnet 4", Enabled: true},
		{Alias: "gpt-4o", Provider: models.FamilyOpenAI, ModelID: "gpt-4o", DisplayName: "GPT-4o", Enabled: true},
		{Alias: "old", Provider: models.FamilyOpenAI, ModelID: "gpt-3.5", DisplayName: "Old", Enabled: false},
	})
	def := NewListModelsTool(registry)
	tc := &Context{User: &models.User{ID: "u1", PreferredModel: "gpt-4o"}}

	out, err := def.Func(context.Background(), "{}", tc)
	require.NoError(t, err)
	assert.Contains(t, out, `"current":"gpt-4o"`)
	assert.Contains(t, out, "claude-sonnet")
	assert.Contains(t, out, `"old"`)

	out, err = def.Func(context.Background(), `{"provider":"openai","enabled_only":true}`, tc)
	require.NoError(t, err)
	assert.Contains(t, out, "gpt-4o")
	assert.NotContains(t, out, "claude-sonnet")
	assert.NotContains(t, out, `"old"`)

	_, err = def.Func(context.Background(), "{bad", tc)
	assert.Error(t, err)
}
