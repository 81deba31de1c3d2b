package constants

// DraftStatus is the canonical status for rows in the drafts table.
type DraftStatus string

const (
	DraftStatusEditing   DraftStatus = "EDITING"   // held in a workspace, may have local edits
	DraftStatusSubmitted DraftStatus = "SUBMITTED" // last edit was accepted by the service
)

// UploadStatus is the canonical status for rows in the uploads table.
type UploadStatus string

const (
	UploadStatusExtracted UploadStatus = "EXTRACTED"
	UploadStatusFailed    UploadStatus = "FAILED"
)
