package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"agentflow-backend/internal/types"
)

// MemoryMessageStore keeps transcripts in process memory. It backs local
// development without a database and the test suites.
type MemoryMessageStore struct {
	mu       sync.RWMutex
	messages map[string][]types.ChatMessage
}

func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{messages: make(map[string][]types.ChatMessage)}
}

func (m *MemoryMessageStore) Append(_ context.Context, userID string, msg types.ChatMessage) error {
	if userID == "" || msg.ID == "" {
		return fmt.Errorf("user_id and message id are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[userID] = append(m.messages[userID], msg)
	return nil
}

func (m *MemoryMessageStore) History(_ context.Context, userID string) ([]types.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[userID]
	out := make([]types.ChatMessage, len(msgs))
	copy(out, msgs)
	// Stable so same-millisecond messages keep insertion order.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (m *MemoryMessageStore) DeleteAll(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, userID)
	return nil
}

// MemoryContactStore keeps contacts in process memory with the same filter
// semantics as the Postgres store.
type MemoryContactStore struct {
	mu       sync.RWMutex
	contacts map[string][]types.ContactData
}

func NewMemoryContactStore() *MemoryContactStore {
	return &MemoryContactStore{contacts: make(map[string][]types.ContactData)}
}

func (m *MemoryContactStore) Search(_ context.Context, userID, name, propertyAddress string) ([]types.ContactData, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	name = strings.TrimSpace(name)
	propertyAddress = strings.TrimSpace(propertyAddress)

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []types.ContactData{}
	for _, c := range m.contacts[userID] {
		if name != "" && !containsFold(c.Name, name) {
			continue
		}
		if propertyAddress != "" && !containsFold(c.PropertyAddress, propertyAddress) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryContactStore) List(ctx context.Context, userID string) ([]types.ContactData, error) {
	return m.Search(ctx, userID, "", "")
}

func (m *MemoryContactStore) Insert(_ context.Context, userID string, c types.ContactData) (types.ContactData, error) {
	if userID == "" || strings.TrimSpace(c.Name) == "" {
		return types.ContactData{}, fmt.Errorf("user_id and name are required")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[userID] = append(m.contacts[userID], c)
	return c, nil
}

func (m *MemoryContactStore) BulkInsert(ctx context.Context, userID string, contacts []types.ContactData) (int, error) {
	count := 0
	for _, c := range contacts {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		if _, err := m.Insert(ctx, userID, c); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
