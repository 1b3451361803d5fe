package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"agentflow-backend/internal/types"
)

// GET /api/contacts
func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	userID := s.currentUser(r)
	if userID == "" {
		s.writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	contacts, err := s.contacts.List(r.Context(), userID)
	if err != nil {
		log.Printf("[contacts] list failed for user %s: %v", userID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to load contacts")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"contacts": contacts})
}

// POST /api/contacts
func (s *Server) handleAddContact(w http.ResponseWriter, r *http.Request) {
	userID := s.currentUser(r)
	if userID == "" {
		s.writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var c types.ContactData
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(c.Name) == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	created, err := s.contacts.Insert(r.Context(), userID, c)
	if err != nil {
		log.Printf("[contacts] insert failed for user %s: %v", userID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to add contact")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"contact": created})
}

// GET /api/panels
// Dashboard side-panel data: live contact count plus the mocked properties
// and deals the product ships with until those tables exist.
func (s *Server) handlePanels(w http.ResponseWriter, r *http.Request) {
	userID := s.currentUser(r)
	if userID == "" {
		s.writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	contacts, err := s.contacts.List(r.Context(), userID)
	if err != nil {
		log.Printf("[panels] contact count failed for user %s: %v", userID, err)
		contacts = nil
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"totalContacts": len(contacts),
		"properties":    mockProperties,
		"deals":         mockDeals,
	})
}

var mockProperties = []types.Property{
	{ID: "prop1", Address: "123 Main St", City: "Anytown", State: "CA", Zip: "91234", Type: "House", Status: "Active", Price: 550000},
	{ID: "prop2", Address: "456 Oak Ave", City: "Somewhere", State: "NY", Zip: "10001", Type: "Condo", Status: "Pending", Price: 320000},
	{ID: "prop3", Address: "789 Pine Ln", City: "Anywhere", State: "TX", Zip: "75001", Type: "House", Status: "Sold", Price: 410000},
}

var mockDeals = []types.Deal{
	{ID: "deal1", ClientName: "Alice Smith", PropertyAddress: "123 Main St", Type: "Buyer", Status: "Negotiation", CloseDate: "2025-06-30", Commission: 0.025},
	{ID: "deal2", ClientName: "Bob Johnson", PropertyAddress: "456 Oak Ave", Type: "Seller", Status: "Showing"},
	{ID: "deal3", ClientName: "Charlie Brown", PropertyAddress: "789 Pine Ln", Type: "Buyer", Status: "Closed", CloseDate: "2025-05-15", Commission: 0.03},
}
