package task

import (
	"errors"
	"fmt"

	domain "github.com/example/task-tracker/domain/task"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a task does not exist for the given
// owner. A task owned by another account reports identically, so the
// caller can never tell whether the id exists at all.
var ErrNotFound = errors.New("task not found")

// Repository handles task persistence using GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new Repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new task. The store assigns the id and timestamps.
func (r *Repository) Create(t *domain.Task) error {
	if err := r.db.Create(t).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// FindAllByOwner returns every task owned by userID, newest first. The
// id tie-break keeps the order stable when creation timestamps collide.
func (r *Repository) FindAllByOwner(userID uint) ([]domain.Task, error) {
	var tasks []domain.Task
	err := r.db.
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// FindByIDAndOwner retrieves a task scoped to its owner. Both a missing
// id and a foreign-owned task yield ErrNotFound.
func (r *Repository) FindByIDAndOwner(id, userID uint) (*domain.Task, error) {
	var t domain.Task
	err := r.db.First(&t, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return &t, nil
}

// UpdateFields applies a column map to the task with the given id. GORM
// refreshes updated_at as part of the map update.
func (r *Repository) UpdateFields(id uint, fields map[string]any) error {
	result := r.db.Model(&domain.Task{}).Where("id = ?", id).Updates(fields)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete permanently removes the task with the given id.
func (r *Repository) Delete(id uint) error {
	result := r.db.Delete(&domain.Task{}, "id = ?", id)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
