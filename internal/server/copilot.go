package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"agentflow-backend/internal/types"
)

const commandTimeout = 30 * time.Second

// POST /api/copilot-command
// Body {command}; auth via session cookie. Success is always 200, even when
// the resolved action yields zero results. Interpreter failures come back as
// a 500 with an error envelope, never a raw stack trace.
func (s *Server) handleCopilotCommand(w http.ResponseWriter, r *http.Request) {
	userID := s.currentUser(r)
	if userID == "" {
		log.Println("[copilot] unauthorized command attempt")
		s.writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req types.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		s.writeError(w, http.StatusBadRequest, "No command provided")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	env, err := s.commands.Execute(ctx, userID, req.Command)
	if err != nil {
		log.Printf("[copilot] command failed for user %s: %v", userID, err)
		s.writeEnvelope(w, http.StatusInternalServerError, types.Envelope{
			Text: err.Error(),
			Type: types.TypeError,
		})
		return
	}
	s.writeEnvelope(w, http.StatusOK, env)
}

// POST /api/chat/send
// Runs the conversation state manager's send cycle: appends the user
// message, executes the command, appends the AI reply (or error bubble).
func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	userID := s.currentUser(r)
	if userID == "" {
		s.writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	mgr := s.hub.Manager(ctx, userID)
	res, err := mgr.Send(ctx, req.Text)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"userMessage":       res.UserMessage,
		"reply":             res.Reply,
		"lastError":         mgr.LastError(),
		"displayedContacts": mgr.DisplayedContacts(),
	})
}

// GET /api/chat/history
func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	userID := s.currentUser(r)
	if userID == "" {
		s.writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	mgr := s.hub.Manager(r.Context(), userID)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"messages":     mgr.Messages(),
		"isProcessing": mgr.Processing(),
		"isTyping":     mgr.Typing(),
		"lastError":    mgr.LastError(),
	})
}

// POST /api/chat/retry
// Body {messageId}: logical replay of the command behind a failed AI reply.
func (s *Server) handleChatRetry(w http.ResponseWriter, r *http.Request) {
	userID := s.currentUser(r)
	if userID == "" {
		s.writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req struct {
		MessageID string `json:"messageId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MessageID == "" {
		s.writeError(w, http.StatusBadRequest, "messageId is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	mgr := s.hub.Manager(ctx, userID)
	res, err := mgr.Retry(ctx, req.MessageID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	body := map[string]any{"messages": mgr.Messages()}
	if res != nil {
		body["userMessage"] = res.UserMessage
		body["reply"] = res.Reply
	}
	_ = json.NewEncoder(w).Encode(body)
}

// POST /api/chat/clear
// Best-effort: the transcript always resets locally; a failed remote delete
// is reported via lastError.
func (s *Server) handleChatClear(w http.ResponseWriter, r *http.Request) {
	userID := s.currentUser(r)
	if userID == "" {
		s.writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	mgr := s.hub.Manager(r.Context(), userID)
	if err := mgr.Clear(r.Context()); err != nil {
		log.Printf("[chat] clear failed remotely for user %s: %v", userID, err)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"messages":  mgr.Messages(),
		"lastError": mgr.LastError(),
	})
}
