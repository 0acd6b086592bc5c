package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded by the core.
const (
	AuditActionSearch      = "search"
	AuditActionBatchSearch = "batch_search"
	AuditActionReport      = "report"
	AuditActionImport      = "import"
	AuditActionUpdate      = "update"
	AuditActionDelete      = "delete"
	AuditActionPurge       = "purge"
	AuditActionExport      = "export"
)

// AuditLog is one recorded operator action. Records are never edited;
// retention is handled by the background sweeper.
type AuditLog struct {
	ID        uuid.UUID     `db:"id"`
	ActorID   *string       `db:"actor_id"`
	ActorRole string        `db:"actor_role"`
	Action    string        `db:"action"`
	Success   bool          `db:"success"`
	Metadata  AuditMetadata `db:"metadata"`
	CreatedAt time.Time     `db:"created_at"`
}

// AuditMetadata holds additional context for audit events
type AuditMetadata map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (am *AuditMetadata) Scan(value interface{}) error {
	if value == nil {
		*am = make(AuditMetadata)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*am = AuditMetadata(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (am AuditMetadata) Value() (driver.Value, error) {
	if am == nil {
		return nil, nil
	}
	return json.Marshal(am)
}
