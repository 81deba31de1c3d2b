package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-desk/constants"
)

// Draft is the record a workspace currently holds, persisted so it survives restarts.
type Draft struct {
	ID        uuid.UUID             `json:"id"`
	SessionID string                `json:"session_id"`
	Filename  string                `json:"filename"`
	Record    []byte                `json:"record"`
	Status    constants.DraftStatus `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}
