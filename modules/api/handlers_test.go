package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tdomain "github.com/example/task-tracker/domain/task"
	udomain "github.com/example/task-tracker/domain/user"
	"github.com/example/task-tracker/modules/task"
	"github.com/gofiber/fiber/v2"
)

// mockTaskPort implements task.TaskPort and records the last call.
type mockTaskPort struct {
	listFunc   func(ctx context.Context, userID uint) ([]task.TaskResponse, error)
	createFunc func(ctx context.Context, userID uint, title string, detail *string, state bool) (task.TaskResponse, error)
	updateFunc func(ctx context.Context, userID, taskID uint, patch tdomain.Patch) (task.TaskResponse, error)
	removeFunc func(ctx context.Context, userID, taskID uint) error

	calls int
}

func (m *mockTaskPort) List(ctx context.Context, userID uint) ([]task.TaskResponse, error) {
	m.calls++
	if m.listFunc != nil {
		return m.listFunc(ctx, userID)
	}
	return []task.TaskResponse{}, nil
}

func (m *mockTaskPort) Create(ctx context.Context, userID uint, title string, detail *string, state bool) (task.TaskResponse, error) {
	m.calls++
	if m.createFunc != nil {
		return m.createFunc(ctx, userID, title, detail, state)
	}
	return task.TaskResponse{}, errors.New("not implemented")
}

func (m *mockTaskPort) Update(ctx context.Context, userID, taskID uint, patch tdomain.Patch) (task.TaskResponse, error) {
	m.calls++
	if m.updateFunc != nil {
		return m.updateFunc(ctx, userID, taskID, patch)
	}
	return task.TaskResponse{}, errors.New("not implemented")
}

func (m *mockTaskPort) Remove(ctx context.Context, userID, taskID uint) error {
	m.calls++
	if m.removeFunc != nil {
		return m.removeFunc(ctx, userID, taskID)
	}
	return errors.New("not implemented")
}

// newTaskTestApp wires the task routes the way the module does, with
// the auth middleware replaced by a stub that accepts "Bearer good" as
// user 42 and rejects everything else.
func newTaskTestApp(port task.TaskPort) *fiber.App {
	app := fiber.New()
	handlers := NewHandlers(nil, nil, port)

	tasks := app.Group("/api/tasks")
	tasks.Use(AuthMiddleware(&mockAuthPort{
		validateTokenFunc: func(_ context.Context, token string) (*udomain.Claims, error) {
			if token != "good" {
				return nil, errors.New("invalid token")
			}
			return &udomain.Claims{UserID: 42, Email: "owner@example.com"}, nil
		},
	}))
	tasks.Get("/", handlers.ListTasks)
	tasks.Post("/", handlers.CreateTask)
	tasks.All("/", methodNotAllowed("GET, POST"))
	tasks.Patch("/:id", handlers.UpdateTask)
	tasks.Delete("/:id", handlers.DeleteTask)
	tasks.All("/:id", methodNotAllowed("PATCH, DELETE"))

	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string, authed bool) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer good")
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("io.ReadAll() error = %v", err)
	}
	return string(body)
}

func TestListTasks(t *testing.T) {
	t.Run("unauthenticated request never reaches the service", func(t *testing.T) {
		mock := &mockTaskPort{}
		app := newTaskTestApp(mock)

		resp := doJSON(t, app, "GET", "/api/tasks", "", false)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusUnauthorized)
		}
		if mock.calls != 0 {
			t.Errorf("service called %d times, want 0", mock.calls)
		}
	})

	t.Run("empty list serializes as json array", func(t *testing.T) {
		app := newTaskTestApp(&mockTaskPort{})

		resp := doJSON(t, app, "GET", "/api/tasks", "", true)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusOK)
		}
		if body := readBody(t, resp); strings.TrimSpace(body) != "[]" {
			t.Errorf("body = %q, want []", body)
		}
	})

	t.Run("tasks returned for the principal", func(t *testing.T) {
		var gotUserID uint
		mock := &mockTaskPort{
			listFunc: func(_ context.Context, userID uint) ([]task.TaskResponse, error) {
				gotUserID = userID
				return []task.TaskResponse{
					{ID: 2, UserID: userID, Title: "newer"},
					{ID: 1, UserID: userID, Title: "older"},
				}, nil
			},
		}
		app := newTaskTestApp(mock)

		resp := doJSON(t, app, "GET", "/api/tasks", "", true)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusOK)
		}
		if gotUserID != 42 {
			t.Errorf("list called with user %d, want 42", gotUserID)
		}
		body := readBody(t, resp)
		if !strings.Contains(body, `"newer"`) || !strings.Contains(body, `"older"`) {
			t.Errorf("body missing tasks: %s", body)
		}
	})

	t.Run("store failure maps to 500 with generic message", func(t *testing.T) {
		mock := &mockTaskPort{
			listFunc: func(_ context.Context, _ uint) ([]task.TaskResponse, error) {
				return nil, errors.New("disk on fire")
			},
		}
		app := newTaskTestApp(mock)

		resp := doJSON(t, app, "GET", "/api/tasks", "", true)
		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusInternalServerError)
		}
		if body := readBody(t, resp); strings.Contains(body, "disk on fire") {
			t.Errorf("internal cause leaked to client: %s", body)
		}
	})
}

func TestCreateTask(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCalls  int
	}{
		{
			name:       "whitespace title rejected",
			body:       `{"title": "  "}`,
			wantStatus: http.StatusBadRequest,
			wantCalls:  0,
		},
		{
			name:       "missing title rejected",
			body:       `{"detail": "no title"}`,
			wantStatus: http.StatusBadRequest,
			wantCalls:  0,
		},
		{
			name:       "non-string title rejected",
			body:       `{"title": 123}`,
			wantStatus: http.StatusBadRequest,
			wantCalls:  0,
		},
		{
			name:       "valid title accepted",
			body:       `{"title": "Review spec"}`,
			wantStatus: http.StatusCreated,
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockTaskPort{
				createFunc: func(_ context.Context, userID uint, title string, detail *string, state bool) (task.TaskResponse, error) {
					return task.TaskResponse{
						ID: 1, UserID: userID, Title: title, Detail: detail, State: state,
						CreatedAt: time.Now(), UpdatedAt: time.Now(),
					}, nil
				},
			}
			app := newTaskTestApp(mock)

			resp := doJSON(t, app, "POST", "/api/tasks", tt.body, true)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %v, want %v", resp.StatusCode, tt.wantStatus)
			}
			if mock.calls != tt.wantCalls {
				t.Errorf("service called %d times, want %d", mock.calls, tt.wantCalls)
			}
		})
	}

	t.Run("title is trimmed and defaults applied", func(t *testing.T) {
		var gotTitle string
		var gotDetail *string
		var gotState bool
		mock := &mockTaskPort{
			createFunc: func(_ context.Context, _ uint, title string, detail *string, state bool) (task.TaskResponse, error) {
				gotTitle, gotDetail, gotState = title, detail, state
				return task.TaskResponse{ID: 1, Title: title, Detail: detail, State: state}, nil
			},
		}
		app := newTaskTestApp(mock)

		resp := doJSON(t, app, "POST", "/api/tasks", `{"title": "  Review spec  "}`, true)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %v, want %v", resp.StatusCode, http.StatusCreated)
		}
		if gotTitle != "Review spec" {
			t.Errorf("title = %q, want trimmed %q", gotTitle, "Review spec")
		}
		if gotDetail != nil {
			t.Errorf("detail = %v, want nil", gotDetail)
		}
		if gotState {
			t.Error("state = true, want default false")
		}

		body := readBody(t, resp)
		if !strings.Contains(body, `"detail":null`) {
			t.Errorf("created task should expose null detail: %s", body)
		}
		if !strings.Contains(body, `"state":false`) {
			t.Errorf("created task should expose state false: %s", body)
		}
	})

	t.Run("mistyped detail and state are dropped", func(t *testing.T) {
		var gotDetail *string
		var gotState bool
		mock := &mockTaskPort{
			createFunc: func(_ context.Context, _ uint, title string, detail *string, state bool) (task.TaskResponse, error) {
				gotDetail, gotState = detail, state
				return task.TaskResponse{ID: 1, Title: title}, nil
			},
		}
		app := newTaskTestApp(mock)

		resp := doJSON(t, app, "POST", "/api/tasks", `{"title": "t", "detail": 5, "state": "yes"}`, true)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %v, want %v", resp.StatusCode, http.StatusCreated)
		}
		if gotDetail != nil {
			t.Errorf("mistyped detail forwarded: %v", gotDetail)
		}
		if gotState {
			t.Error("mistyped state forwarded")
		}
	})
}

func TestUpdateTask(t *testing.T) {
	t.Run("invalid ids rejected", func(t *testing.T) {
		for _, id := range []string{"abc", "0", "-1", "1.5"} {
			mock := &mockTaskPort{}
			app := newTaskTestApp(mock)

			resp := doJSON(t, app, "PATCH", "/api/tasks/"+id, `{"state": true}`, true)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("id %q: status = %v, want %v", id, resp.StatusCode, http.StatusBadRequest)
			}
			if mock.calls != 0 {
				t.Errorf("id %q: service called", id)
			}
		}
	})

	t.Run("empty body rejected before the service", func(t *testing.T) {
		mock := &mockTaskPort{}
		app := newTaskTestApp(mock)

		resp := doJSON(t, app, "PATCH", "/api/tasks/1", `{}`, true)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusBadRequest)
		}
		if mock.calls != 0 {
			t.Error("service called for empty patch body")
		}
	})

	t.Run("state change forwards a state-only patch", func(t *testing.T) {
		var gotPatch tdomain.Patch
		mock := &mockTaskPort{
			updateFunc: func(_ context.Context, _, taskID uint, patch tdomain.Patch) (task.TaskResponse, error) {
				gotPatch = patch
				return task.TaskResponse{ID: taskID, Title: "unchanged", State: true}, nil
			},
		}
		app := newTaskTestApp(mock)

		resp := doJSON(t, app, "PATCH", "/api/tasks/7", `{"state": true}`, true)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %v, want %v", resp.StatusCode, http.StatusOK)
		}

		if state, ok := gotPatch.State.Get(); !ok || !state {
			t.Error("expected state=true in patch")
		}
		if gotPatch.Title.IsSet() || gotPatch.Detail.IsSet() {
			t.Error("unexpected fields in patch")
		}
	})

	t.Run("null detail clears", func(t *testing.T) {
		var gotPatch tdomain.Patch
		mock := &mockTaskPort{
			updateFunc: func(_ context.Context, _, taskID uint, patch tdomain.Patch) (task.TaskResponse, error) {
				gotPatch = patch
				return task.TaskResponse{ID: taskID}, nil
			},
		}
		app := newTaskTestApp(mock)

		resp := doJSON(t, app, "PATCH", "/api/tasks/7", `{"detail": null}`, true)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %v, want %v", resp.StatusCode, http.StatusOK)
		}

		detail, ok := gotPatch.Detail.Get()
		if !ok {
			t.Fatal("expected detail present in patch")
		}
		if detail != nil {
			t.Errorf("expected nil detail (clear), got %q", *detail)
		}
	})

	t.Run("mistyped field still counts as presence but is dropped", func(t *testing.T) {
		var gotPatch tdomain.Patch
		mock := &mockTaskPort{
			updateFunc: func(_ context.Context, _, taskID uint, patch tdomain.Patch) (task.TaskResponse, error) {
				gotPatch = patch
				return task.TaskResponse{ID: taskID, Title: "unchanged"}, nil
			},
		}
		app := newTaskTestApp(mock)

		resp := doJSON(t, app, "PATCH", "/api/tasks/7", `{"title": 123}`, true)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %v, want %v", resp.StatusCode, http.StatusOK)
		}
		if mock.calls != 1 {
			t.Errorf("service called %d times, want 1", mock.calls)
		}
		if !gotPatch.Empty() {
			t.Error("mistyped field leaked into the patch")
		}
	})

	t.Run("null state counts as mistyped and is dropped", func(t *testing.T) {
		var gotPatch tdomain.Patch
		mock := &mockTaskPort{
			updateFunc: func(_ context.Context, _, taskID uint, patch tdomain.Patch) (task.TaskResponse, error) {
				gotPatch = patch
				return task.TaskResponse{ID: taskID, Title: "unchanged", State: true}, nil
			},
		}
		app := newTaskTestApp(mock)

		resp := doJSON(t, app, "PATCH", "/api/tasks/7", `{"state": null}`, true)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %v, want %v", resp.StatusCode, http.StatusOK)
		}
		if !gotPatch.Empty() {
			t.Error("null state leaked into the patch")
		}
	})

	t.Run("null title is dropped, not treated as blank", func(t *testing.T) {
		var gotPatch tdomain.Patch
		mock := &mockTaskPort{
			updateFunc: func(_ context.Context, _, taskID uint, patch tdomain.Patch) (task.TaskResponse, error) {
				gotPatch = patch
				return task.TaskResponse{ID: taskID, Title: "unchanged"}, nil
			},
		}
		app := newTaskTestApp(mock)

		resp := doJSON(t, app, "PATCH", "/api/tasks/7", `{"title": null}`, true)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %v, want %v", resp.StatusCode, http.StatusOK)
		}
		if mock.calls != 1 {
			t.Errorf("service called %d times, want 1", mock.calls)
		}
		if !gotPatch.Empty() {
			t.Error("null title leaked into the patch")
		}
	})

	t.Run("blank title rejected", func(t *testing.T) {
		mock := &mockTaskPort{}
		app := newTaskTestApp(mock)

		resp := doJSON(t, app, "PATCH", "/api/tasks/7", `{"title": "   "}`, true)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusBadRequest)
		}
		if mock.calls != 0 {
			t.Error("service called with blank title")
		}
	})

	t.Run("ownership miss maps to 404", func(t *testing.T) {
		mock := &mockTaskPort{
			updateFunc: func(_ context.Context, _, _ uint, _ tdomain.Patch) (task.TaskResponse, error) {
				return task.TaskResponse{}, task.ErrNotFound
			},
		}
		app := newTaskTestApp(mock)

		resp := doJSON(t, app, "PATCH", "/api/tasks/7", `{"state": true}`, true)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusNotFound)
		}
	})
}

func TestDeleteTask(t *testing.T) {
	t.Run("success is 204 with empty body", func(t *testing.T) {
		var gotUserID, gotTaskID uint
		mock := &mockTaskPort{
			removeFunc: func(_ context.Context, userID, taskID uint) error {
				gotUserID, gotTaskID = userID, taskID
				return nil
			},
		}
		app := newTaskTestApp(mock)

		resp := doJSON(t, app, "DELETE", "/api/tasks/9", "", true)
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusNoContent)
		}
		if gotUserID != 42 || gotTaskID != 9 {
			t.Errorf("remove called with (%d, %d), want (42, 9)", gotUserID, gotTaskID)
		}
		if body := readBody(t, resp); body != "" {
			t.Errorf("expected empty body, got %q", body)
		}
	})

	t.Run("ownership miss maps to 404", func(t *testing.T) {
		mock := &mockTaskPort{
			removeFunc: func(_ context.Context, _, _ uint) error {
				return task.ErrNotFound
			},
		}
		app := newTaskTestApp(mock)

		resp := doJSON(t, app, "DELETE", "/api/tasks/9", "", true)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusNotFound)
		}
	})
}

func TestMethodNotAllowed(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		path      string
		wantAllow string
	}{
		{
			name:      "PUT on collection",
			method:    "PUT",
			path:      "/api/tasks",
			wantAllow: "GET, POST",
		},
		{
			name:      "PUT on item",
			method:    "PUT",
			path:      "/api/tasks/1",
			wantAllow: "PATCH, DELETE",
		},
		{
			name:      "POST on item",
			method:    "POST",
			path:      "/api/tasks/1",
			wantAllow: "PATCH, DELETE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTaskTestApp(&mockTaskPort{})

			resp := doJSON(t, app, tt.method, tt.path, "", true)
			if resp.StatusCode != http.StatusMethodNotAllowed {
				t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusMethodNotAllowed)
			}
			if allow := resp.Header.Get("Allow"); allow != tt.wantAllow {
				t.Errorf("Allow = %q, want %q", allow, tt.wantAllow)
			}
		})
	}
}

// newMeTestApp wires the protected account route the way the module
// does, with the same port backing both the middleware and the handler.
func newMeTestApp(users *mockAuthPort) *fiber.App {
	app := fiber.New()
	handlers := NewHandlers(nil, users, nil)
	app.Get("/api/auth/me", AuthMiddleware(users), handlers.Me)
	return app
}

func TestMe(t *testing.T) {
	validate := func(_ context.Context, token string) (*udomain.Claims, error) {
		if token != "good" {
			return nil, errors.New("invalid token")
		}
		return &udomain.Claims{UserID: 42, Email: "owner@example.com"}, nil
	}

	t.Run("returns the caller's account", func(t *testing.T) {
		var gotID uint
		app := newMeTestApp(&mockAuthPort{
			validateTokenFunc: validate,
			getUserFunc: func(_ context.Context, userID uint) (*udomain.User, error) {
				gotID = userID
				return &udomain.User{
					ID:        userID,
					Email:     "owner@example.com",
					CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
				}, nil
			},
		})

		resp := doJSON(t, app, "GET", "/api/auth/me", "", true)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %v, want %v", resp.StatusCode, http.StatusOK)
		}
		if gotID != 42 {
			t.Errorf("looked up account %d, want 42", gotID)
		}

		body := readBody(t, resp)
		if !strings.Contains(body, `"id":42`) || !strings.Contains(body, `"email":"owner@example.com"`) {
			t.Errorf("unexpected body: %s", body)
		}
	})

	t.Run("requires a token", func(t *testing.T) {
		called := false
		app := newMeTestApp(&mockAuthPort{
			validateTokenFunc: validate,
			getUserFunc: func(_ context.Context, _ uint) (*udomain.User, error) {
				called = true
				return nil, errors.New("not reached")
			},
		})

		resp := doJSON(t, app, "GET", "/api/auth/me", "", false)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusUnauthorized)
		}
		if called {
			t.Error("account lookup ran without a principal")
		}
	})

	t.Run("deleted account maps to 404", func(t *testing.T) {
		app := newMeTestApp(&mockAuthPort{
			validateTokenFunc: validate,
			getUserFunc: func(_ context.Context, _ uint) (*udomain.User, error) {
				return nil, errors.New("get-user request failed: user not found")
			},
		})

		resp := doJSON(t, app, "GET", "/api/auth/me", "", true)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusNotFound)
		}
	})
}
