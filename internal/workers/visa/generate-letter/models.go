// internal/workers/visa/generate-letter/models.go
package generateletter

type Input struct {
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	ApplicationID   string `json:"applicationId"`
	Filename        string `json:"letterFilename"`
	Size            int64  `json:"letterSize"`
	Normalized      bool   `json:"letterNormalized"`
	EmailStatus     string `json:"letterEmailStatus"`
	EmailMessageID  string `json:"letterEmailMessageId,omitempty"`
	LetterGenerated string `json:"letterGeneratedAt"` // ISO 8601
}

const (
	EmailSent     = "sent"
	EmailDisabled = "disabled"
	EmailSkipped  = "skipped" // no address on file
)
