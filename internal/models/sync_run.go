package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SyncRunKind string

const (
	SyncRunFull   SyncRunKind = "full"
	SyncRunSingle SyncRunKind = "single"
)

type SyncRunStatus string

const (
	SyncRunRunning   SyncRunStatus = "running"
	SyncRunCompleted SyncRunStatus = "completed"
	SyncRunFailed    SyncRunStatus = "failed"
)

// SyncRun records one reconciliation call against WooCommerce.
type SyncRun struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Kind          SyncRunKind   `gorm:"type:varchar(10);not null;index" json:"kind"`
	Status        SyncRunStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	RemoteID      *int64        `json:"remote_id,omitempty"`
	Synced        int           `json:"synced"`
	Errors        int           `json:"errors"`
	Total         int           `json:"total"`
	MarkedMissing int           `json:"marked_missing"`
	LastError     string        `gorm:"type:text" json:"last_error"`
	StartedAt     time.Time     `gorm:"index" json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at"`
}

func (r *SyncRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
