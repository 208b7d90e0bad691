package task

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	domain "github.com/example/task-tracker/domain/task"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// TaskPort defines the interface other modules use to reach the task
// services.
type TaskPort interface {
	List(ctx context.Context, userID uint) ([]TaskResponse, error)
	Create(ctx context.Context, userID uint, title string, detail *string, state bool) (TaskResponse, error)
	Update(ctx context.Context, userID, taskID uint, patch domain.Patch) (TaskResponse, error)
	Remove(ctx context.Context, userID, taskID uint) error
}

// TaskAdapter implements TaskPort over the mono service container.
type TaskAdapter struct {
	container mono.ServiceContainer
}

// NewTaskAdapter creates a new TaskAdapter.
func NewTaskAdapter(container mono.ServiceContainer) *TaskAdapter {
	return &TaskAdapter{container: container}
}

// List returns the caller's tasks, newest first.
func (a *TaskAdapter) List(ctx context.Context, userID uint) ([]TaskResponse, error) {
	req := ListTasksRequest{UserID: userID}
	var resp ListTasksResponse

	if err := helper.CallRequestReplyService(
		ctx, a.container, "list", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("list request failed: %w", err)
	}

	if resp.Tasks == nil {
		resp.Tasks = []TaskResponse{}
	}
	return resp.Tasks, nil
}

// Create creates a task owned by userID.
func (a *TaskAdapter) Create(ctx context.Context, userID uint, title string, detail *string, state bool) (TaskResponse, error) {
	req := CreateTaskRequest{
		UserID: userID,
		Title:  title,
		Detail: detail,
		State:  state,
	}
	var resp TaskResponse

	if err := helper.CallRequestReplyService(
		ctx, a.container, "create", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return TaskResponse{}, fmt.Errorf("create request failed: %w", err)
	}
	return resp, nil
}

// Update applies a partial update to a task owned by userID.
func (a *TaskAdapter) Update(ctx context.Context, userID, taskID uint, patch domain.Patch) (TaskResponse, error) {
	req := UpdateTaskRequest{
		UserID: userID,
		TaskID: taskID,
	}
	if title, ok := patch.Title.Get(); ok {
		req.Title = &title
	}
	if detail, ok := patch.Detail.Get(); ok {
		req.Detail = detail
		req.DetailSet = true
	}
	if state, ok := patch.State.Get(); ok {
		req.State = &state
	}

	var resp TaskResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "update", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return TaskResponse{}, retypeError("update", err)
	}
	return resp, nil
}

// Remove permanently deletes a task owned by userID.
func (a *TaskAdapter) Remove(ctx context.Context, userID, taskID uint) error {
	req := DeleteTaskRequest{UserID: userID, TaskID: taskID}
	var resp DeleteTaskResponse

	if err := helper.CallRequestReplyService(
		ctx, a.container, "delete", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return retypeError("delete", err)
	}
	return nil
}

// retypeError recovers the typed ErrNotFound from an error that crossed
// the service container, where only the message survives.
func retypeError(op string, err error) error {
	if strings.Contains(err.Error(), ErrNotFound.Error()) {
		return ErrNotFound
	}
	return fmt.Errorf("%s request failed: %w", op, err)
}
