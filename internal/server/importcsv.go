package server

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"agentflow-backend/internal/types"
)

// POST /api/import-csv
// Multipart form field csvFile. When an import webhook is configured the raw
// content is forwarded to the workflow engine; otherwise the CSV is parsed
// here and the rows inserted for the user.
func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	userID := s.currentUser(r)
	if userID == "" {
		log.Println("[import] unauthorized CSV import attempt")
		s.writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("csvFile")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}
	log.Printf("[import] received %s (%d bytes) from user %s", header.Filename, len(content), userID)

	if s.cfg.ImportWebhookURL != "" {
		if err := s.forwardCSV(userID, header.Filename, content); err != nil {
			log.Printf("[import] webhook delegation failed for user %s: %v", userID, err)
			s.writeError(w, http.StatusBadGateway, fmt.Sprintf("Failed to start import process: %s", err.Error()))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "CSV file received and sent for processing. Your contacts will appear shortly.",
		})
		return
	}

	contacts, err := parseContactsCSV(content)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	count, err := s.contacts.BulkInsert(r.Context(), userID, contacts)
	if err != nil {
		log.Printf("[import] insert failed for user %s: %v", userID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to import contacts")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"message": fmt.Sprintf("Imported %d contact(s).", count),
		"count":   count,
	})
}

// forwardCSV hands the raw CSV to the workflow engine, which processes it
// asynchronously.
func (s *Server) forwardCSV(userID, filename string, content []byte) error {
	payload, err := json.Marshal(map[string]any{
		"userId":     userID,
		"csvContent": string(content),
		"fileName":   filename,
	})
	if err != nil {
		return fmt.Errorf("failed to encode import payload: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, s.cfg.ImportWebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build import request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.ImportAPIKey != "" {
		req.Header.Set("X-Api-Key", s.cfg.ImportAPIKey)
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("import webhook unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("import webhook returned status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}

// parseContactsCSV maps header columns to contact fields. Only name is
// required; unknown columns are ignored.
func parseContactsCSV(content []byte) ([]types.ContactData, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV has no data rows")
	}

	cols := map[string]int{}
	for i, h := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	nameIdx, ok := cols["name"]
	if !ok {
		return nil, fmt.Errorf("CSV is missing a name column")
	}

	field := func(row []string, key string) string {
		idx, ok := cols[key]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var contacts []types.ContactData
	for _, row := range records[1:] {
		if nameIdx >= len(row) || strings.TrimSpace(row[nameIdx]) == "" {
			continue
		}
		contacts = append(contacts, types.ContactData{
			Name:            strings.TrimSpace(row[nameIdx]),
			Phone:           field(row, "phone"),
			Email:           field(row, "email"),
			PropertyAddress: field(row, "property_address"),
		})
	}
	return contacts, nil
}
