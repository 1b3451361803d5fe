package types

import (
	"encoding/json"
	"fmt"
)

// Message senders.
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// Known envelope/message data types. Anything else is treated as opaque JSON
// so the frontend can add renderers without a backend change.
const (
	TypeText         = "text"
	TypeContactsList = "contacts_list"
	TypeError        = "error"
	TypeWarning      = "warning"
)

// CommandRequest is the body of POST /api/copilot-command.
type CommandRequest struct {
	Command string         `json:"command"`
	Context map[string]any `json:"context,omitempty"`
}

// Envelope is the normalized Co-Pilot reply. Text is always present; Type
// classifies how Data should be rendered (absent for plain conversation).
// Data is always emitted, null when there is no payload, matching what the
// frontend expects on the wire.
type Envelope struct {
	Text string `json:"text"`
	Type string `json:"type,omitempty"`
	Data any    `json:"data"`
}

// CommandResponse wraps the envelope the way the frontend expects it.
type CommandResponse struct {
	Response Envelope `json:"response"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ChatMessage is one entry in a user's Co-Pilot transcript.
type ChatMessage struct {
	ID          string `json:"id"`
	Sender      string `json:"sender"`
	Text        string `json:"text"`
	Type        string `json:"type,omitempty"`
	Data        any    `json:"data,omitempty"`
	Timestamp   int64  `json:"timestamp"` // unix millis
	IsRetryable bool   `json:"isRetryable,omitempty"`
}

// ContactData is the contact read model. Only Name is required; the rest are
// nullable columns in the contacts table.
type ContactData struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Phone           string `json:"phone,omitempty"`
	Email           string `json:"email,omitempty"`
	PropertyAddress string `json:"property_address,omitempty"`
}

// ContactsFromData decodes an envelope Data payload tagged contacts_list.
// The payload may arrive as []ContactData (built in-process) or as decoded
// JSON (workflow engine / persisted row), so it round-trips through JSON in
// the latter case.
func ContactsFromData(data any) ([]ContactData, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case []ContactData:
		return v, nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("contacts payload not serializable: %w", err)
		}
		var out []ContactData
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("contacts payload has unexpected shape: %w", err)
		}
		return out, nil
	}
}

// Property is a mocked listing shown in the dashboard properties panel.
type Property struct {
	ID      string  `json:"id"`
	Address string  `json:"address"`
	City    string  `json:"city"`
	State   string  `json:"state"`
	Zip     string  `json:"zip"`
	Type    string  `json:"type"`
	Status  string  `json:"status"`
	Price   float64 `json:"price"`
}

// Deal is a mocked pipeline entry shown in the dashboard deals panel.
type Deal struct {
	ID              string  `json:"id"`
	ClientName      string  `json:"clientName"`
	PropertyAddress string  `json:"propertyAddress"`
	Type            string  `json:"type"`
	Status          string  `json:"status"`
	CloseDate       string  `json:"closeDate,omitempty"`
	Commission      float64 `json:"commission,omitempty"`
}
