package api

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"relay/models"
	"relay/tools"
)

// OpenAIClient talks to a chat-completions endpoint. A configurable base URL
// makes it work against any OpenAI-compatible server (OpenRouter, vLLM,
// Groq, ...).
//
// Tool results travel as distinct "tool" role messages correlated by call
// id, after the assistant message that carries the tool-call descriptors.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a chat-completions provider client. An empty
// baseURL means the default endpoint.
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIClient{client: &client}
}

func (c *OpenAIClient) Family() string {
	return models.FamilyOpenAI
}

func (c *OpenAIClient) Infer(ctx context.Context, req Request) (*Response, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		msgs = append(msgs, toOpenAIMessage(m))
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: msgs,
	}
	if len(req.Tools) > 0 {
		params.Tools = OpenAITools(req.Tools)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: response has no choices")
	}

	msg := resp.Choices[0].Message
	out := &Response{
		Content: msg.Content,
		Model:   resp.Model,
		Usage: models.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: models.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out, nil
}

// OpenAITools converts tool definitions to chat-completions function
// declarations, in definition order.
func OpenAITools(defs []tools.Definition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(defs))
	for i, d := range defs {
		out[i] = openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        d.Name,
				Description: openai.String(d.Description),
				Parameters:  shared.FunctionParameters(d.Schema),
			},
		}
	}
	return out
}

func toOpenAIMessage(m models.Message) openai.ChatCompletionMessageParamUnion {
	switch m.Role {
	case models.RoleTool:
		return openai.ToolMessage(m.Content, m.ToolCallID)
	case models.RoleSystem:
		return openai.SystemMessage(m.Content)
	case models.RoleUser:
		if len(m.Attachments) == 0 {
			return openai.UserMessage(m.Content)
		}
		blocks := ContentBlocks(m)
		if len(blocks) == 0 {
			return openai.UserMessage(m.Content)
		}
		parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(blocks))
		for _, b := range blocks {
			switch b.Kind {
			case BlockImage:
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: DataURI(b),
				}))
			case BlockText:
				parts = append(parts, openai.TextContentPart(b.Text))
			}
		}
		return openai.UserMessage(parts)
	default: // assistant
		asst := openai.ChatCompletionAssistantMessageParam{}
		if m.Content != "" {
			asst.Content.OfString = openai.String(m.Content)
		}
		if len(m.ToolCalls) > 0 {
			asst.ToolCalls = make([]openai.ChatCompletionMessageToolCallParam, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				asst.ToolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				}
			}
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: &asst}
	}
}
