package models

import "time"

const (
	AuditApplicationCreated   = "APPLICATION_CREATED"
	AuditApplicationUpdated   = "APPLICATION_UPDATED"
	AuditApplicationDeleted   = "APPLICATION_DELETED"
	AuditStatusChanged        = "STATUS_CHANGED"
	AuditApplicationsImported = "APPLICATIONS_IMPORTED"
	AuditApplicationsExported = "APPLICATIONS_EXPORTED"
	AuditLetterGenerated      = "LETTER_GENERATED"
)

type AuditEntry struct {
	Action    string                 `json:"action"`
	Resource  string                 `json:"resource"`
	EntityID  string                 `json:"entityId"`
	ActorID   string                 `json:"actorId"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}
