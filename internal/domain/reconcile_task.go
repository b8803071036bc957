package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ReconcileTaskPending = "pending"
	ReconcileTaskFailed  = "failed"
)

// ReconcileTask is an outbox row written before a multi-step relationship
// update and removed once every dependent write has landed. Rows left behind
// are replayed by the reconciler.
type ReconcileTask struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Kind      Kind      `gorm:"column:kind;not null;index:idx_reconcile_task_entity" json:"kind"`
	EntityID  uuid.UUID `gorm:"type:uuid;not null;index:idx_reconcile_task_entity" json:"entity_id"`
	Op        string    `gorm:"column:op;not null" json:"op"`
	Status    string    `gorm:"column:status;not null;default:'pending';index" json:"status"`
	Attempts  int       `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError string    `gorm:"column:last_error" json:"last_error,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ReconcileTask) TableName() string { return "reconcile_task" }

func (t *ReconcileTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = ReconcileTaskPending
	}
	return nil
}
