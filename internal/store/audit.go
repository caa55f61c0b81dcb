package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"visa-portal/internal/models"
)

type auditStore struct {
	q DBTX
}

func (s *auditStore) Record(ctx context.Context, entry models.AuditEntry) error {
	details := []byte("{}")
	if len(entry.Details) > 0 {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		details = b
	}
	resource := entry.Resource
	if resource == "" {
		resource = "application"
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, actor_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.Action, resource, entry.EntityID, entry.ActorID, details, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
