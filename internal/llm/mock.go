package llm

import (
	"context"
	"errors"
)

// MockModel implements [Model] for testing.
//
// Responses are returned in order; once exhausted, the last one repeats.
// Errs, when set, is consulted per call index before Responses.
type MockModel struct {
	Responses []string
	Errs      []error

	// Requests records every Generate call.
	Requests []*Request
}

// Generate returns the next scripted response.
func (m *MockModel) Generate(ctx context.Context, req *Request) (*Response, error) {
	idx := len(m.Requests)
	m.Requests = append(m.Requests, req)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if idx < len(m.Errs) && m.Errs[idx] != nil {
		return nil, m.Errs[idx]
	}
	if len(m.Responses) == 0 {
		return nil, errors.New("mock model has no responses")
	}
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return &Response{Text: m.Responses[idx]}, nil
}

// LastRequest returns the most recent request, or nil.
func (m *MockModel) LastRequest() *Request {
	if len(m.Requests) == 0 {
		return nil
	}
	return m.Requests[len(m.Requests)-1]
}
