package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"agentflow-backend/internal/types"
)

// WelcomeText seeds every empty transcript.
const WelcomeText = "Hello! I'm your AgentFlow AI Co-Pilot. How can I assist you today?"

// MessageStore is the persistence surface the manager needs.
type MessageStore interface {
	Append(ctx context.Context, userID string, msg types.ChatMessage) error
	History(ctx context.Context, userID string) ([]types.ChatMessage, error)
	DeleteAll(ctx context.Context, userID string) error
}

// CommandClient executes one command and returns the reply envelope.
type CommandClient interface {
	Execute(ctx context.Context, userID, command string) (types.Envelope, error)
}

// Manager is the single source of truth for one user's Co-Pilot transcript
// and request lifecycle. Sends are single-flight: a dedicated mutex
// serializes overlapping calls so message ordering stays deterministic; the
// processing flag remains advisory for the presentation layer.
type Manager struct {
	userID   string
	store    MessageStore
	commands CommandClient

	sendMu sync.Mutex // serializes Send/Retry/Clear (single-flight)

	mu                sync.RWMutex // guards the fields below
	messages          []types.ChatMessage
	processing        bool
	typing            bool
	lastError         string
	displayedContacts []types.ContactData

	now   func() time.Time
	newID func() string
}

// NewManager loads the user's persisted history (the store always wins on
// load) and seeds the welcome message when the transcript is empty. A history
// load failure degrades to a fresh transcript with lastError set.
func NewManager(ctx context.Context, userID string, store MessageStore, commands CommandClient) *Manager {
	m := &Manager{
		userID:   userID,
		store:    store,
		commands: commands,
		now:      time.Now,
		newID:    uuid.NewString,
	}

	history, err := store.History(ctx, userID)
	if err != nil {
		log.Printf("[chat] failed to load history for user %s: %v", userID, err)
		m.lastError = err.Error()
	}
	if len(history) > 0 {
		m.messages = history
	} else {
		m.seedWelcomeLocked()
	}
	return m
}

// seedWelcomeLocked resets the transcript to the synthetic welcome message.
// The welcome message is never persisted.
func (m *Manager) seedWelcomeLocked() {
	m.messages = []types.ChatMessage{{
		ID:        m.newID(),
		Sender:    types.SenderAI,
		Text:      WelcomeText,
		Timestamp: m.now().UnixMilli(),
	}}
}

// SendResult is the message pair produced by one Send call.
type SendResult struct {
	UserMessage types.ChatMessage `json:"userMessage"`
	Reply       types.ChatMessage `json:"reply"`
}

// Send appends the user's message, invokes the Command Interpreter, and
// appends the AI reply (success or error). Empty or whitespace-only text is a
// no-op. Every non-empty call grows the transcript by exactly two messages.
func (m *Manager) Send(ctx context.Context, text string) (*SendResult, error) {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()
	return m.sendLocked(ctx, text)
}

// sendLocked is the body of Send; callers hold sendMu.
func (m *Manager) sendLocked(ctx context.Context, text string) (*SendResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	userMsg := m.AddMessage(types.ChatMessage{Sender: types.SenderUser, Text: text})

	m.mu.Lock()
	m.processing = true
	m.typing = true
	m.lastError = ""
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.processing = false
		m.typing = false
		m.mu.Unlock()
	}()

	env, err := m.commands.Execute(ctx, m.userID, text)
	if err == nil && env.Text == "" {
		err = fmt.Errorf("invalid response format from Co-Pilot backend")
	}
	if err != nil {
		m.mu.Lock()
		m.lastError = err.Error()
		m.mu.Unlock()

		reply := m.AddMessage(types.ChatMessage{
			Sender:      types.SenderAI,
			Text:        fmt.Sprintf("Sorry, I encountered an error: %s", err.Error()),
			Type:        types.TypeError,
			IsRetryable: true,
		})
		m.persistAsync(userMsg, reply)
		return &SendResult{UserMessage: userMsg, Reply: reply}, nil
	}

	if env.Type == types.TypeContactsList {
		if contacts, derr := types.ContactsFromData(env.Data); derr == nil {
			m.mu.Lock()
			m.displayedContacts = contacts
			m.mu.Unlock()
		} else {
			log.Printf("[chat] contacts_list payload for user %s did not decode: %v", m.userID, derr)
		}
	}

	reply := m.AddMessage(types.ChatMessage{
		Sender: types.SenderAI,
		Text:   env.Text,
		Type:   env.Type,
		Data:   env.Data,
	})
	m.persistAsync(userMsg, reply)
	return &SendResult{UserMessage: userMsg, Reply: reply}, nil
}

// Retry replays the command behind a failed AI message: it finds the nearest
// preceding user message, truncates everything after it, and re-sends that
// text. A failed message with no preceding user message is marked
// non-retryable and annotated instead. This is a logical replay, not a
// transport retry. The whole lookup-truncate-replay runs under the send
// lock, so an in-flight Send finishes before the transcript is cut.
func (m *Manager) Retry(ctx context.Context, messageID string) (*SendResult, error) {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	m.mu.Lock()
	idx := -1
	for i, msg := range m.messages {
		if msg.ID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return nil, fmt.Errorf("message %s not found", messageID)
	}
	target := m.messages[idx]
	if target.Sender != types.SenderAI || !target.IsRetryable {
		m.mu.Unlock()
		return nil, fmt.Errorf("message %s is not retryable", messageID)
	}

	userIdx := idx - 1
	for userIdx >= 0 && m.messages[userIdx].Sender != types.SenderUser {
		userIdx--
	}
	if userIdx < 0 {
		m.messages[idx].IsRetryable = false
		m.messages[idx].Text += " (cannot retry: original command not found)"
		m.mu.Unlock()
		return nil, nil
	}

	text := m.messages[userIdx].Text
	m.messages = m.messages[:userIdx+1]
	m.mu.Unlock()

	return m.sendLocked(ctx, text)
}

// Clear deletes the user's persisted transcript and reseeds the welcome
// message. The remote delete is best-effort: a failure is recorded in
// lastError but local state clears regardless.
func (m *Manager) Clear(ctx context.Context) error {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	var deleteErr error
	if err := m.store.DeleteAll(ctx, m.userID); err != nil {
		log.Printf("[chat] failed to delete transcript for user %s: %v", m.userID, err)
		deleteErr = err
	}

	m.mu.Lock()
	if deleteErr != nil {
		m.lastError = deleteErr.Error()
	} else {
		m.lastError = ""
	}
	m.seedWelcomeLocked()
	m.mu.Unlock()
	return deleteErr
}

// AddMessage assigns a fresh id and current timestamp, appends the message,
// and returns the constructed value. Low-level building block used by Send
// and test harnesses.
func (m *Manager) AddMessage(partial types.ChatMessage) types.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	partial.ID = m.newID()
	partial.Timestamp = m.now().UnixMilli()
	m.messages = append(m.messages, partial)
	return partial
}

// persistAsync writes the messages fire-and-forget, in the given order from a
// single goroutine so the stored transcript matches the in-memory one.
// Failures are logged, never surfaced to the caller.
func (m *Manager) persistAsync(msgs ...types.ChatMessage) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, msg := range msgs {
			if err := m.store.Append(ctx, m.userID, msg); err != nil {
				log.Printf("[chat] failed to persist message %s for user %s: %v", msg.ID, m.userID, err)
			}
		}
	}()
}

// Messages returns a copy of the transcript.
func (m *Manager) Messages() []types.ChatMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.ChatMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// DisplayedContacts returns the contacts last surfaced by a contacts_list
// reply, consumed by the dashboard panels.
func (m *Manager) DisplayedContacts() []types.ContactData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.ContactData, len(m.displayedContacts))
	copy(out, m.displayedContacts)
	return out
}

func (m *Manager) Processing() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.processing
}

func (m *Manager) Typing() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.typing
}

func (m *Manager) LastError() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

func (m *Manager) UserID() string { return m.userID }
