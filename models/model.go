package models

import (
	"time"
)

// Provider families. Exactly two wire formats are supported.
const (
	FamilyAnthropic = "anthropic"
	FamilyOpenAI    = "openai"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Attachment kinds.
const (
	AttachmentImage    = "image"
	AttachmentText     = "text"
	AttachmentDocument = "document"
	AttachmentOther    = "other"
)

// Attachment is one file carried on a message. Images carry base64 data,
// text and document files carry extracted text; other kinds carry neither.
type Attachment struct {
	Kind     string `json:"kind"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename"`
	Data     string `json:"data,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Message represents one conversation turn. Created once per turn and
// immutable thereafter. Attachments never appear on system messages.
type Message struct {
	ID          string       `json:"id"`
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolCallID  string       `json:"tool_call_id,omitempty"`
	ToolName    string       `json:"tool_name,omitempty"`
	ToolIsError bool         `json:"tool_is_error,omitempty"`

	// Accounting, populated only on assistant turns produced by inference.
	Model        string `json:"model,omitempty"`
	InputTokens  int64  `json:"input_tokens,omitempty"`
	OutputTokens int64  `json:"output_tokens,omitempty"`
	LatencyMs    int64  `json:"latency_ms,omitempty"`
}

// ToolCall represents a tool call requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the tool name and its raw JSON arguments. The
// arguments string comes straight from the provider and may be invalid JSON.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Usage is one inference call's token accounting.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Add accumulates another call's usage into u.
func (u *Usage) Add(o Usage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
}

// AIResponse is the final outcome of one agentic loop invocation. Token
// counts are summed across every inference call the loop made, not just the
// last one.
type AIResponse struct {
	Content      string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// ModelConfig binds a logical alias to a concrete provider-side model.
type ModelConfig struct {
	Alias       string `json:"alias"`
	Provider    string `json:"provider"`
	ModelID     string `json:"model_id"`
	DisplayName string `json:"display_name"`
	Enabled     bool   `json:"enabled"`
}

// User is the acting chat user as seen by tools.
type User struct {
	ID             string
	Role           string
	PreferredModel string
}
