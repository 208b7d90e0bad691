package task

import (
	"context"
	"fmt"

	domain "github.com/example/task-tracker/domain/task"
)

// CreateInput carries the fields accepted on task creation. A nil
// Detail persists as null; State defaults to false (open).
type CreateInput struct {
	Title  string
	Detail *string
	State  bool
}

// Service is the sole gatekeeper between the transport layer and the
// task store. Every operation takes the authenticated principal's user
// id and refuses to see tasks owned by anyone else.
type Service struct {
	repo *Repository
}

// NewService creates a new Service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// List returns all tasks owned by userID, newest first. It re-reads the
// store on every call.
func (s *Service) List(_ context.Context, userID uint) ([]domain.Task, error) {
	return s.repo.FindAllByOwner(userID)
}

// Create persists a new task for userID. Title validity is the
// transport layer's responsibility; the service stores what it is
// given.
func (s *Service) Create(_ context.Context, userID uint, in CreateInput) (*domain.Task, error) {
	t := &domain.Task{
		UserID: userID,
		Title:  in.Title,
		Detail: in.Detail,
		State:  in.State,
	}
	if err := s.repo.Create(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Update applies a partial update to a task owned by userID. The
// ownership check runs first and a miss is ErrNotFound regardless of
// whether the id exists under another account. A patch whose fields
// were all dropped upstream performs no write and returns the task
// unchanged.
func (s *Service) Update(_ context.Context, userID, taskID uint, patch domain.Patch) (*domain.Task, error) {
	current, err := s.repo.FindByIDAndOwner(taskID, userID)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	if title, ok := patch.Title.Get(); ok {
		fields["title"] = title
	}
	if detail, ok := patch.Detail.Get(); ok {
		fields["detail"] = detail
	}
	if state, ok := patch.State.Get(); ok {
		fields["state"] = state
	}

	if len(fields) == 0 {
		return current, nil
	}

	if err := s.repo.UpdateFields(taskID, fields); err != nil {
		return nil, fmt.Errorf("failed to apply update: %w", err)
	}

	return s.repo.FindByIDAndOwner(taskID, userID)
}

// Remove permanently deletes a task owned by userID under the same
// ownership rule as Update.
func (s *Service) Remove(_ context.Context, userID, taskID uint) error {
	if _, err := s.repo.FindByIDAndOwner(taskID, userID); err != nil {
		return err
	}
	return s.repo.Delete(taskID)
}
