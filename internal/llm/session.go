package llm

import (
	"context"
	"fmt"
)

// Session owns the process-wide assistant identifier. The first caller
// creates the assistant; concurrent callers wait and observe the same ID.
// A failed creation is not remembered.
type Session struct {
	lock        chan struct{}
	assistantID string
}

// NewSession creates an empty session
func NewSession() *Session {
	return &Session{lock: make(chan struct{}, 1)}
}

// AssistantID returns the assistant identifier, calling create at most once
// successfully over the session lifetime.
func (s *Session) AssistantID(ctx context.Context, create func(context.Context) (string, error)) (string, error) {
	select {
	case s.lock <- struct{}{}:
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for assistant: %w", ctx.Err())
	}
	defer func() { <-s.lock }()

	if s.assistantID != "" {
		return s.assistantID, nil
	}

	id, err := create(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("assistant creation returned no identifier")
	}

	s.assistantID = id
	return id, nil
}

// Current returns the assistant identifier if one has been created
func (s *Session) Current() string {
	s.lock <- struct{}{}
	defer func() { <-s.lock }()
	return s.assistantID
}
