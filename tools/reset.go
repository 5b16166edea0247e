package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// NewResetConversationTool creates the reset_conversation tool, which
// archives the user's active conversation(s) so the next message starts a
// fresh one.
func NewResetConversationTool() Definition {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
		"required":   []interface{}{},
	}

	return Definition{
		Name:        "reset_conversation",
		Description: "Archive the user's current conversation and start fresh. Use when the user asks to reset, clear or start over.",
		Schema:      schema,
		Func: func(ctx context.Context, raw string, tc *Context) (string, error) {
			if tc == nil || tc.User == nil || tc.Conversations == nil {
				return "", fmt.Errorf("no conversation to reset")
			}
			archived, err := tc.Conversations.ArchiveActive(tc.User.ID)
			if err != nil {
				return "", fmt.Errorf("archiving conversation: %w", err)
			}
			b, err := json.Marshal(map[string]interface{}{"ok": true, "archived": archived})
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}
}
