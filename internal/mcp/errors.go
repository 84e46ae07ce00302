package mcp

import (
	"errors"
	"fmt"

	"github.com/klockd/klock/internal/domain/kernel"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps kernel errors to MCP error codes.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kernel.ErrInvalidInput) {
		return &APIError{Code: "INVALID_INPUT", Message: err.Error(), RecoveryHint: "Fix the request fields and retry"}
	}
	return err
}

func invalidInput(err error) error {
	return &APIError{Code: "INVALID_INPUT", Message: err.Error(), RecoveryHint: "Fix the request fields and retry"}
}
