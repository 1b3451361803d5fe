package copilot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"agentflow-backend/internal/types"
)

// WorkflowClient delegates a command to an external workflow engine webhook
// instead of interpreting it in-process. The webhook owns the AI logic and
// must answer with {"response": {"text": ..., "type": ..., "data": ...}}.
type WorkflowClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

func NewWorkflowClient(url, apiKey string) *WorkflowClient {
	return &WorkflowClient{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type workflowPayload struct {
	UserID      string         `json:"userId"`
	CommandText string         `json:"commandText"`
	Context     map[string]any `json:"context"`
}

// Execute forwards the command and returns the engine's envelope. A non-2xx
// status or a body without response.text is an error; the caller turns it
// into a user-visible failure message.
func (w *WorkflowClient) Execute(ctx context.Context, userID, command string) (types.Envelope, error) {
	body, err := json.Marshal(workflowPayload{UserID: userID, CommandText: command, Context: map[string]any{}})
	if err != nil {
		return types.Envelope{}, fmt.Errorf("failed to encode workflow payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return types.Envelope{}, fmt.Errorf("failed to build workflow request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.apiKey != "" {
		req.Header.Set("X-Api-Key", w.apiKey)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return types.Envelope{}, fmt.Errorf("workflow webhook unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return types.Envelope{}, fmt.Errorf("workflow webhook returned status %d: %s", resp.StatusCode, string(detail))
	}

	var decoded struct {
		Response *struct {
			Text *string `json:"text"`
			Type string  `json:"type"`
			Data any     `json:"data"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return types.Envelope{}, fmt.Errorf("workflow webhook returned invalid JSON: %w", err)
	}
	if decoded.Response == nil || decoded.Response.Text == nil {
		return types.Envelope{}, fmt.Errorf("workflow webhook returned an unexpected response format")
	}
	return types.Envelope{
		Text: *decoded.Response.Text,
		Type: decoded.Response.Type,
		Data: decoded.Response.Data,
	}, nil
}
