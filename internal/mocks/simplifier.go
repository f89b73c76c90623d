package mocks

import (
	"context"
	"strconv"

	"github.com/easy-language-api/internal/simplifier"
)

// MockClient is a mock simplification API client. Responses maps an
// input text to its simplified form; unmapped texts get an "[easy]"
// prefix.
type MockClient struct {
	Responses   map[string]string
	MaxRequests int
	CallError   error
	Calls       int
	// CalledWith records every (text, sourceLang, targetLang) triple
	CalledWith [][3]string
}

func NewMockClient() *MockClient {
	return &MockClient{
		Responses:   make(map[string]string),
		MaxRequests: 25,
	}
}

func (m *MockClient) Name() string {
	return "mock"
}

func (m *MockClient) Call(ctx context.Context, text, sourceLang, targetLang string) (*simplifier.Result, error) {
	m.Calls++
	m.CalledWith = append(m.CalledWith, [3]string{text, sourceLang, targetLang})
	if m.CallError != nil {
		return nil, m.CallError
	}
	simplified, ok := m.Responses[text]
	if !ok {
		simplified = "[easy] " + text
	}
	return &simplifier.Result{
		Text:  simplified,
		JobID: "mock-" + strconv.Itoa(m.Calls),
	}, nil
}

func (m *MockClient) MaxRequestsPerInterval() int {
	return m.MaxRequests
}

var _ simplifier.Client = (*MockClient)(nil)
