package api

import (
	"context"

	"relay/models"
	"relay/tools"
)

// Request is one provider-agnostic inference call.
type Request struct {
	Model    string
	System   string
	Messages []models.Message
	Tools    []tools.Definition
}

// Response is a provider's answer to one inference call. Model is the
// concrete model id as the provider reported it.
type Response struct {
	Content   string
	ToolCalls []models.ToolCall
	Model     string
	Usage     models.Usage
}

// Client is one provider family's single-call inference contract. The loop
// driver dispatches on family and otherwise treats both families
// identically.
type Client interface {
	Family() string
	Infer(ctx context.Context, req Request) (*Response, error)
}
