package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"relay/models"
)

// ErrorHandler formats errors for the chat surface with optional debug
// logging. Only configuration and transport failures reach the user as a
// generic failure line; tool-level and convergence failures always resolve
// to a textual answer before they get here.
type ErrorHandler struct {
	debugEnabled bool
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(debugEnabled bool) *ErrorHandler {
	return &ErrorHandler{debugEnabled: debugEnabled}
}

// HandleLoopError turns a loop invocation failure into a user-facing line.
func (eh *ErrorHandler) HandleLoopError(err error) string {
	if err == nil {
		return ""
	}
	if eh.debugEnabled {
		log.Printf("loop error: %v", err)
	}
	switch {
	case errors.Is(err, context.Canceled):
		return "Cancelled request"
	case errors.Is(err, models.ErrModelNotFound):
		return fmt.Sprintf("❌ %v ('models' lists what's configured)", err)
	case errors.Is(err, models.ErrModelDisabled):
		return fmt.Sprintf("❌ %v (an admin has turned this model off)", err)
	default:
		return fmt.Sprintf("❌ request failed: %v", err)
	}
}

// HandleCommandError formats a command failure.
func (eh *ErrorHandler) HandleCommandError(operation string, err error) string {
	if err == nil {
		return ""
	}
	if eh.debugEnabled {
		log.Printf("%s error: %v", operation, err)
	}
	return fmt.Sprintf("❌ %s failed: %v", operation, err)
}
