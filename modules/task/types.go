package task

import (
	"time"

	domain "github.com/example/task-tracker/domain/task"
)

// TaskResponse is the task shape exposed on every boundary, wire and
// HTTP alike. Detail marshals as JSON null when the task has none.
type TaskResponse struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"userId"`
	Title     string    `json:"title"`
	Detail    *string   `json:"detail"`
	State     bool      `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListTasksRequest is the request for listing an account's tasks.
type ListTasksRequest struct {
	UserID uint `json:"user_id"`
}

// ListTasksResponse is the response containing an ordered task list.
type ListTasksResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Total int            `json:"total"`
}

// CreateTaskRequest is the request for creating a task.
type CreateTaskRequest struct {
	UserID uint    `json:"user_id"`
	Title  string  `json:"title"`
	Detail *string `json:"detail,omitempty"`
	State  bool    `json:"state"`
}

// UpdateTaskRequest is the request for a partial task update. Pointer
// fields are "absent when nil"; Detail additionally needs DetailSet
// because JSON cannot distinguish an absent detail from an explicit
// null, and an explicit null clears the field.
type UpdateTaskRequest struct {
	UserID    uint    `json:"user_id"`
	TaskID    uint    `json:"task_id"`
	Title     *string `json:"title,omitempty"`
	Detail    *string `json:"detail"`
	DetailSet bool    `json:"detail_set"`
	State     *bool   `json:"state,omitempty"`
}

// DeleteTaskRequest is the request for deleting a task.
type DeleteTaskRequest struct {
	UserID uint `json:"user_id"`
	TaskID uint `json:"task_id"`
}

// DeleteTaskResponse is the response after deleting a task.
type DeleteTaskResponse struct {
	Deleted bool `json:"deleted"`
	ID      uint `json:"id"`
}

// toTaskResponse converts a Task entity to its boundary shape.
func toTaskResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:        t.ID,
		UserID:    t.UserID,
		Title:     t.Title,
		Detail:    t.Detail,
		State:     t.State,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// patchFromRequest rebuilds the tri-state Patch from its wire form.
func patchFromRequest(req UpdateTaskRequest) domain.Patch {
	var patch domain.Patch
	if req.Title != nil {
		patch.Title = domain.Some(*req.Title)
	}
	if req.DetailSet {
		patch.Detail = domain.Some(req.Detail)
	}
	if req.State != nil {
		patch.State = domain.Some(*req.State)
	}
	return patch
}
