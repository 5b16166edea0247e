package tools

import (
	"context"
	"encoding/json"

	"relay/models"
)

// NewListModelsTool creates the list_models tool. It reads the model router
// live, so admin-side enable/disable changes show up immediately.
func NewListModelsTool(registry *models.Registry) Definition {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"provider": map[string]interface{}{
				"type":        "string",
				"description": "Filter by provider family",
				"enum":        []interface{}{models.FamilyAnthropic, models.FamilyOpenAI},
			},
			"enabled_only": map[string]interface{}{
				"type":        "boolean",
				"description": "Only include models that are currently enabled",
			},
		},
		"required": []interface{}{},
	}

	return Definition{
		Name:        "list_models",
		Description: "List the chat models available to the user, including which one they currently prefer.",
		Schema:      schema,
		Func: func(ctx context.Context, raw string, tc *Context) (string, error) {
			args, err := parseArgs(raw)
			if err != nil {
				return "", err
			}
			provider := stringArg(args, "provider")
			enabledOnly, _ := args["enabled_only"].(bool)

			type entry struct {
				ID       string `json:"id"`
				Provider string `json:"provider"`
				Name     string `json:"name"`
				Enabled  bool   `json:"enabled"`
			}
			entries := []entry{}
			for _, m := range registry.All() {
				if provider != "" && m.Provider != provider {
					continue
				}
				if enabledOnly && !m.Enabled {
					continue
				}
				entries = append(entries, entry{ID: m.Alias, Provider: m.Provider, Name: m.DisplayName, Enabled: m.Enabled})
			}

			payload := map[string]interface{}{"models": entries}
			if tc != nil && tc.User != nil {
				payload["current"] = tc.User.PreferredModel
			}
			b, err := json.Marshal(payload)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}
}
