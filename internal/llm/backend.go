// Package llm talks to the AI services that write performance analyses.
package llm

import (
	"context"
	"errors"
)

// ErrNoReply is returned when a backend's answer carries no reply field at
// all. A present but blank reply is returned as is.
var ErrNoReply = errors.New("AI backend response has no reply")

// Backend turns a prompt into the model's raw text reply
type Backend interface {
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
	Name() string
}
