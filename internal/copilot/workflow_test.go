package copilot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowClientExecute(t *testing.T) {
	var gotPayload workflowPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":{"text":"Found 1 contact.","type":"contacts_list","data":[{"id":"1","name":"John Doe"}]}}`))
	}))
	defer srv.Close()

	wc := NewWorkflowClient(srv.URL, "secret")
	env, err := wc.Execute(context.Background(), "user-1", "Show my contacts")
	require.NoError(t, err)
	assert.Equal(t, "Found 1 contact.", env.Text)
	assert.Equal(t, "contacts_list", env.Type)
	assert.NotNil(t, env.Data)
	assert.Equal(t, "user-1", gotPayload.UserID)
	assert.Equal(t, "Show my contacts", gotPayload.CommandText)
}

func TestWorkflowClientNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workflow exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	wc := NewWorkflowClient(srv.URL, "")
	_, err := wc.Execute(context.Background(), "user-1", "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWorkflowClientMissingText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":{"type":"contacts_list"}}`))
	}))
	defer srv.Close()

	wc := NewWorkflowClient(srv.URL, "")
	_, err := wc.Execute(context.Background(), "user-1", "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected response format")
}

func TestWorkflowClientInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	wc := NewWorkflowClient(srv.URL, "")
	_, err := wc.Execute(context.Background(), "user-1", "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}
