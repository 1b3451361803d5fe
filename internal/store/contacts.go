package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"agentflow-backend/internal/db"
	"agentflow-backend/internal/types"
)

// ContactStore persists contacts in PostgreSQL, scoped to the owning user.
type ContactStore struct {
	db *db.DB
}

func NewContactStore(database *db.DB) *ContactStore {
	return &ContactStore{db: database}
}

// Search returns the user's contacts, optionally filtered by case-insensitive
// substring match on name and/or property address. Empty filters are omitted
// from the query entirely rather than matching empty strings.
func (cs *ContactStore) Search(ctx context.Context, userID, name, propertyAddress string) ([]types.ContactData, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	query := `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(property_address, '')
		FROM contacts
		WHERE user_id = $1`
	args := []any{userID}

	if s := strings.TrimSpace(name); s != "" {
		args = append(args, "%"+s+"%")
		query += fmt.Sprintf(" AND name ILIKE $%d", len(args))
	}
	if s := strings.TrimSpace(propertyAddress); s != "" {
		args = append(args, "%"+s+"%")
		query += fmt.Sprintf(" AND property_address ILIKE $%d", len(args))
	}
	query += " ORDER BY name"

	rows, err := cs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	contacts := []types.ContactData{}
	for rows.Next() {
		var c types.ContactData
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.PropertyAddress); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read contacts: %w", err)
	}
	return contacts, nil
}

// List returns all of the user's contacts ordered by name.
func (cs *ContactStore) List(ctx context.Context, userID string) ([]types.ContactData, error) {
	return cs.Search(ctx, userID, "", "")
}

// Insert stores a single contact. A fresh id is assigned when missing.
func (cs *ContactStore) Insert(ctx context.Context, userID string, c types.ContactData) (types.ContactData, error) {
	if userID == "" || strings.TrimSpace(c.Name) == "" {
		return types.ContactData{}, fmt.Errorf("user_id and name are required")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	query := `
		INSERT INTO contacts (id, user_id, name, phone, email, property_address)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := cs.db.ExecContext(ctx, query,
		c.ID, userID, c.Name, nullable(c.Phone), nullable(c.Email), nullable(c.PropertyAddress))
	if err != nil {
		return types.ContactData{}, fmt.Errorf("failed to insert contact: %w", err)
	}
	return c, nil
}

// BulkInsert stores a batch of imported contacts in one transaction and
// returns how many rows were written. Rows without a name are skipped.
func (cs *ContactStore) BulkInsert(ctx context.Context, userID string, contacts []types.ContactData) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("user_id is required")
	}
	tx, err := cs.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	count := 0
	for _, c := range contacts {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO contacts (id, user_id, name, phone, email, property_address)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			id, userID, c.Name, nullable(c.Phone), nullable(c.Email), nullable(c.PropertyAddress)); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to insert contact %q: %w", c.Name, err)
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit contact import: %w", err)
	}
	return count, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: strings.TrimSpace(s) != ""}
}
