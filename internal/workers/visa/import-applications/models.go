// internal/workers/visa/import-applications/models.go
package importapplications

import "visa-portal/internal/importer"

type Input struct {
	FilePath string `json:"filePath"`
	ActorID  string `json:"actorId,omitempty"`
}

type Output struct {
	ImportSummary *importer.Summary `json:"importSummary"`
	ImportedAt    string            `json:"importedAt"` // ISO 8601
}
