package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"relay/models"
)

// modelArgKeys are the accepted argument field names for switch_model, tried
// in priority order. Models name this field inconsistently, so the tool is
// deliberately tolerant.
var modelArgKeys = []string{"model", "model_id", "modelId", "model_name", "modelName", "id", "name"}

// NewSwitchModelTool creates the switch_model tool. Resolution order: exact
// alias, exact provider-side id, normalized alias or display-name match,
// then a remote catalog lookup that auto-registers the model on a hit.
func NewSwitchModelTool(registry *models.Registry, catalog *Catalog) Definition {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"model": map[string]interface{}{
				"type":        "string",
				"description": "Model alias, id or name to switch the user to",
			},
		},
		"required": []interface{}{"model"},
	}

	return Definition{
		Name:        "switch_model",
		Description: "Switch the user's preferred chat model. Accepts an alias, a provider model id, or a human-readable model name.",
		Schema:      schema,
		Func: func(ctx context.Context, raw string, tc *Context) (string, error) {
			name, err := modelArg(raw)
			if err != nil {
				return "", err
			}
			if name == "" {
				return "", fmt.Errorf("no model specified; expected one of the fields %s or a plain model name", strings.Join(modelArgKeys, ", "))
			}

			m := registry.Match(name)
			if m == nil && catalog != nil {
				m = resolveFromCatalog(ctx, registry, catalog, name)
			}
			if m == nil {
				return "", fmt.Errorf("unknown model %q; known models: %s", name, strings.Join(registry.Aliases(), ", "))
			}
			if !m.Enabled {
				return "", fmt.Errorf("model %q is disabled", m.Alias)
			}
			if tc == nil || tc.User == nil {
				return "", fmt.Errorf("no acting user for model switch")
			}

			// Persist first; the in-context mutation only happens once the
			// preference is durably stored.
			if tc.Users != nil {
				if err := tc.Users.SetPreferredModel(tc.User.ID, m.Alias); err != nil {
					return "", fmt.Errorf("saving model preference: %w", err)
				}
			}
			tc.User.PreferredModel = m.Alias

			b, err := json.Marshal(map[string]interface{}{
				"ok": true,
				"model": map[string]string{
					"id":       m.Alias,
					"provider": m.Provider,
					"name":     m.DisplayName,
				},
			})
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}
}

// modelArg extracts the requested model name from the raw argument payload,
// accepting either an object with one of modelArgKeys or a bare JSON string.
func modelArg(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	var bare string
	if err := json.Unmarshal([]byte(raw), &bare); err == nil {
		return strings.TrimSpace(bare), nil
	}
	args, err := parseArgs(raw)
	if err != nil {
		return "", err
	}
	for _, k := range modelArgKeys {
		if v := strings.TrimSpace(stringArg(args, k)); v != "" {
			return v, nil
		}
	}
	return "", nil
}

// resolveFromCatalog checks the cached remote catalog for the name and
// registers a matching model under its catalog id. Catalog models are served
// through the chat-completions family. Lookup failures are soft: the caller
// falls through to its not-found error.
func resolveFromCatalog(ctx context.Context, registry *models.Registry, catalog *Catalog, name string) *models.ModelConfig {
	snap, err := catalog.Get(ctx, false, 0)
	if err != nil {
		return nil
	}
	entry := snap.Find(name)
	if entry == nil {
		// The cache may simply predate the model; try one forced refresh.
		if snap, err = catalog.Get(ctx, true, 0); err != nil {
			return nil
		}
		if entry = snap.Find(name); entry == nil {
			return nil
		}
	}
	m := models.ModelConfig{
		Alias:       entry.ID,
		Provider:    models.FamilyOpenAI,
		ModelID:     entry.ID,
		DisplayName: entry.Name,
		Enabled:     true,
	}
	registry.Register(m)
	return &m
}
