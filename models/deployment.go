package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	statusErrorPfx   = "error: "
)

// ErrorStatus formats the terminal status of a failed deployment.
func ErrorStatus(msg string) string {
	return statusErrorPfx + msg
}

// Deployment is one attempt to publish a generated site. It is inserted as
// "processing" and updated exactly once to "success" or "error: ...".
type Deployment struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Email     string         `json:"-" gorm:"size:255;not null;index:idx_deployments_email_created_at,priority:1"`
	Task      string         `json:"task"`
	Round     int            `json:"round"`
	Nonce     string         `json:"nonce"`
	RepoURL   *string        `json:"repo_url"`
	CommitSHA *string        `json:"commit_sha"`
	PagesURL  *string        `json:"pages_url"`
	Status    string         `json:"status" gorm:"not null"`
	Checks    datatypes.JSON `json:"checks,omitempty"`
	CreatedAt time.Time      `json:"created_at" gorm:"not null;index:idx_deployments_email_created_at,priority:2"`
}
