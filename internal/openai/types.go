// Package openai implements llm.Model for OpenAI-compatible chat completion
// APIs, with tool calling and retry on transient failures.
package openai

import (
	"errors"
	"time"
)

// Retry settings.
const (
	httpClientTimeout      = 90 * time.Second
	initialBackoffDuration = 1 * time.Second
	minRetryAttempts       = 1
)

// invalidRequestErrors lists API error codes that are never retried.
var invalidRequestErrors = []string{
	"invalid_request_error",
	"context_length_exceeded",
	"invalid_api_key",
	"organization_not_found",
	"model_not_found",
}

// Errors returned by Generate.
var (
	ErrNilConfig = errors.New("config is nil")
	ErrNoChoices = errors.New("no response choices available")
)
