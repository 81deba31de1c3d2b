package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-desk/constants"
)

// Upload is one file sent to the extraction service, keyed by content hash.
type Upload struct {
	ID          uuid.UUID              `json:"id"`
	ContentHash string                 `json:"content_hash"`
	Filename    string                 `json:"filename"`
	SourcePath  string                 `json:"source_path"`
	SizeBytes   int64                  `json:"size_bytes"`
	Status      constants.UploadStatus `json:"status"`
	Error       string                 `json:"error,omitempty"`
	UploadedAt  time.Time              `json:"uploaded_at"`
}
