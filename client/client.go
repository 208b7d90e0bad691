// Package client is a small SDK for the task API. It keeps a local copy
// of the caller's task list and reconciles it against every mutation
// response: refresh replaces the cache, create prepends, update
// replaces by id, delete removes by id. The server stays the source of
// truth; the cache only ever holds what the server returned.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Task mirrors the task JSON shape served by the API.
type Task struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"userId"`
	Title     string    `json:"title"`
	Detail    *string   `json:"detail"`
	State     bool      `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreatePayload carries the fields sent on task creation.
type CreatePayload struct {
	Title  string  `json:"title"`
	Detail *string `json:"detail,omitempty"`
}

// UpdatePayload carries a partial update. Absent pointer fields stay
// untouched on the server; ClearDetail sends an explicit null detail.
type UpdatePayload struct {
	Title       *string
	Detail      *string
	ClearDetail bool
	State       *bool
}

// MarshalJSON emits only the supplied fields, with ClearDetail encoded
// as an explicit JSON null.
func (p UpdatePayload) MarshalJSON() ([]byte, error) {
	body := make(map[string]any)
	if p.Title != nil {
		body["title"] = *p.Title
	}
	if p.ClearDetail {
		body["detail"] = nil
	} else if p.Detail != nil {
		body["detail"] = *p.Detail
	}
	if p.State != nil {
		body["state"] = *p.State
	}
	return json.Marshal(body)
}

// apiError is the error body shape returned by the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client talks to the task API on behalf of one authenticated account.
// It is safe for concurrent use; mutations serialize so at most one is
// in flight at a time, matching the UI affordance this replaces.
type Client struct {
	baseURL string
	token   string
	http    *http.Client

	mutateMu sync.Mutex // serializes mutations, one in flight at a time

	mu         sync.Mutex // guards tasks and mutatingID
	tasks      []Task
	mutatingID uint
}

// New creates a Client for the given API base URL and bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Tasks returns a snapshot of the cached task list.
func (c *Client) Tasks() []Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

// MutatingID returns the id of the task with a mutation in flight, or
// zero when none is.
func (c *Client) MutatingID() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mutatingID
}

// Refresh re-fetches the full list and replaces the cache.
func (c *Client) Refresh(ctx context.Context) error {
	var tasks []Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, http.StatusOK, &tasks); err != nil {
		return err
	}

	c.mu.Lock()
	c.tasks = tasks
	c.mu.Unlock()
	return nil
}

// Create creates a task and prepends the server's copy to the cache.
func (c *Client) Create(ctx context.Context, payload CreatePayload) (Task, error) {
	c.beginMutation(0)
	defer c.endMutation()

	var created Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", payload, http.StatusCreated, &created); err != nil {
		return Task{}, err
	}

	c.mu.Lock()
	c.tasks = append([]Task{created}, c.tasks...)
	c.mu.Unlock()
	return created, nil
}

// Update patches a task and replaces the cached entry by id.
func (c *Client) Update(ctx context.Context, taskID uint, payload UpdatePayload) (Task, error) {
	c.beginMutation(taskID)
	defer c.endMutation()

	var updated Task
	path := fmt.Sprintf("/api/tasks/%d", taskID)
	if err := c.do(ctx, http.MethodPatch, path, payload, http.StatusOK, &updated); err != nil {
		return Task{}, err
	}

	c.mu.Lock()
	for i := range c.tasks {
		if c.tasks[i].ID == taskID {
			c.tasks[i] = updated
			break
		}
	}
	c.mu.Unlock()
	return updated, nil
}

// Delete removes a task and drops the cached entry by id.
func (c *Client) Delete(ctx context.Context, taskID uint) error {
	c.beginMutation(taskID)
	defer c.endMutation()

	path := fmt.Sprintf("/api/tasks/%d", taskID)
	if err := c.do(ctx, http.MethodDelete, path, nil, http.StatusNoContent, nil); err != nil {
		return err
	}

	c.mu.Lock()
	kept := c.tasks[:0]
	for _, t := range c.tasks {
		if t.ID != taskID {
			kept = append(kept, t)
		}
	}
	c.tasks = kept
	c.mu.Unlock()
	return nil
}

// beginMutation serializes mutations and records which task is being
// mutated. Create passes zero since the task has no id yet.
func (c *Client) beginMutation(taskID uint) {
	c.mutateMu.Lock()
	c.mu.Lock()
	c.mutatingID = taskID
	c.mu.Unlock()
}

func (c *Client) endMutation() {
	c.mu.Lock()
	c.mutatingID = 0
	c.mu.Unlock()
	c.mutateMu.Unlock()
}

// do runs one request and decodes the response when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, payload any, wantStatus int, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return decodeError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// decodeError turns a non-success response into an error, preferring
// the server's message over the bare status.
func decodeError(resp *http.Response) error {
	var apiErr apiError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("%s: %s", resp.Status, apiErr.Message)
	}
	return fmt.Errorf("unexpected status %s", resp.Status)
}
