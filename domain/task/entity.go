package task

import (
	"time"
)

// Task is the persisted unit of work. Every task belongs to exactly one
// account; the owner never changes after creation. There is no soft
// delete: removal is permanent.
type Task struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	Detail    *string   `gorm:"size:2000" json:"detail"`
	State     bool      `gorm:"not null;default:false" json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the table name for the Task entity.
func (Task) TableName() string {
	return "tasks"
}
