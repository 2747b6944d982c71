// Package testutil provides common test doubles and helpers shared across
// Assistente tests.
package testutil

import (
	"context"
	"sync"
)

// MockGenAIClient is a recording test double for genai.ClientInterface.
type MockGenAIClient struct {
	mu sync.Mutex

	Response string
	Err      error

	Calls         int
	SystemPrompts []string
	UserPrompts   []string
	Temperatures  []float64
}

// Generate records the call and returns the configured response or error.
func (m *MockGenAIClient) Generate(_ context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.SystemPrompts = append(m.SystemPrompts, systemPrompt)
	m.UserPrompts = append(m.UserPrompts, userPrompt)
	m.Temperatures = append(m.Temperatures, temperature)
	if m.Err != nil {
		return "", m.Err
	}
	if m.Response == "" {
		return "resposta gerada", nil
	}
	return m.Response, nil
}
