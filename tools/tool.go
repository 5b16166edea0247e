package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"relay/models"
)

// Func executes one tool call. raw is the argument payload exactly as the
// provider sent it; each tool decodes its own input.
type Func func(ctx context.Context, raw string, tc *Context) (string, error)

// Definition describes one tool offered to the model.
type Definition struct {
	Name        string
	Description string
	Schema      map[string]interface{}
	Func        Func
}

// Result is the uniform outcome of a tool execution fed back to the model.
// IsError does not stop the loop; the model sees the error text and gets a
// chance to recover conversationally.
type Result struct {
	Content string
	IsError bool
}

// UserStore persists per-user preferences.
type UserStore interface {
	SetPreferredModel(userID, alias string) error
}

// ConversationStore archives conversations.
type ConversationStore interface {
	ArchiveActive(userID string) (int, error)
}

// Context is the ambient state shared by every tool call in one agentic-loop
// run. It is scoped to that run and must never be shared across concurrent
// runs. User is mutable: switch_model updates PreferredModel in place so
// later tool calls in the same run see the change.
type Context struct {
	User           *models.User
	ConversationID int64
	Users          UserStore
	Conversations  ConversationStore

	// OnToolResult, when set, fires synchronously after every execution and
	// before the result reaches the loop driver. It must not affect loop
	// semantics.
	OnToolResult func(name, input string, res Result)
}

// parseArgs decodes a tool argument payload into a generic map. An empty
// payload is an empty map.
func parseArgs(raw string) (map[string]interface{}, error) {
	args := map[string]interface{}{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return args, nil
}

// stringArg returns args[key] when it is a non-empty string.
func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}
