package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"relay/models"
	"relay/tools"
)

const anthropicMaxTokens = 4096

// AnthropicClient talks to the native messages endpoint.
//
// The messages API allows only "user" and "assistant" roles: tool results
// travel as user turns carrying tool_result blocks, and the assistant turn
// that requested them must echo its tool_use blocks.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a native-messages provider client.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{client: &client}
}

func (c *AnthropicClient) Family() string {
	return models.FamilyAnthropic
}

func (c *AnthropicClient) Infer(ctx context.Context, req Request) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  toAnthropicMessages(req.Messages),
		MaxTokens: anthropicMaxTokens,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = AnthropicTools(req.Tools)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic request: %w", err)
	}

	out := &Response{
		Model: string(resp.Model),
		Usage: models.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if out.Content != "" {
				out.Content += "\n"
			}
			out.Content += block.AsText().Text
		case "tool_use":
			tu := block.AsToolUse()
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{
				ID:   tu.ID,
				Type: "function",
				Function: models.FunctionCall{
					Name:      tu.Name,
					Arguments: string(tu.Input),
				},
			})
		}
	}
	return out, nil
}

// AnthropicTools converts tool definitions to the messages API declaration
// shape. The export is a pure function of the definition list, so repeated
// calls always agree with OpenAITools over the same list.
func AnthropicTools(defs []tools.Definition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(defs))
	for i, d := range defs {
		props, _ := d.Schema["properties"].(map[string]interface{})
		if props == nil {
			props = map[string]interface{}{}
		}
		var required []string
		if req, ok := d.Schema["required"].([]interface{}); ok {
			for _, r := range req {
				if s, ok := r.(string); ok {
					required = append(required, s)
				}
			}
		}
		if req, ok := d.Schema["required"].([]string); ok {
			required = req
		}
		out[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        d.Name,
				Description: anthropic.String(d.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   required,
				},
			},
		}
	}
	return out
}

// toAnthropicMessages converts the internal history to messages API params.
// Consecutive tool-role messages collapse into a single user turn, one
// tool_result block per call, which is how the API expects a batch of
// results to come back.
func toAnthropicMessages(messages []models.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for i := 0; i < len(messages); i++ {
		m := messages[i]
		switch m.Role {
		case models.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropicUserBlocks(m)...))
		case models.RoleTool:
			blocks := []anthropic.ContentBlockParamUnion{
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, m.ToolIsError),
			}
			for i+1 < len(messages) && messages[i+1].Role == models.RoleTool {
				i++
				n := messages[i]
				blocks = append(blocks, anthropic.NewToolResultBlock(n.ToolCallID, n.Content, n.ToolIsError))
			}
			out = append(out, anthropic.NewUserMessage(blocks...))
		case models.RoleAssistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(m.ToolCalls))
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				input := json.RawMessage(tc.Function.Arguments)
				if !json.Valid(input) {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    tc.ID,
						Name:  tc.Function.Name,
						Input: input,
					},
				})
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		}
	}
	return out
}

func anthropicUserBlocks(m models.Message) []anthropic.ContentBlockParamUnion {
	blocks := ContentBlocks(m)
	if len(blocks) == 0 {
		return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)}
	}
	out := make([]anthropic.ContentBlockParamUnion, 0, len(blocks))
	for _, b := range blocks {
		switch b.Kind {
		case BlockImage:
			out = append(out, anthropic.NewImageBlockBase64(b.MIME, b.Data))
		case BlockText:
			out = append(out, anthropic.NewTextBlock(b.Text))
		}
	}
	return out
}
