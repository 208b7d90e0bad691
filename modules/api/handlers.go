package api

import (
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"strings"

	tdomain "github.com/example/task-tracker/domain/task"
	udomain "github.com/example/task-tracker/domain/user"
	"github.com/example/task-tracker/modules/auth"
	"github.com/example/task-tracker/modules/task"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/gofiber/fiber/v2"
)

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	authContainer mono.ServiceContainer
	users         auth.AuthPort
	tasks         task.TaskPort
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authContainer mono.ServiceContainer, users auth.AuthPort, tasks task.TaskPort) *Handlers {
	return &Handlers{
		authContainer: authContainer,
		users:         users,
		tasks:         tasks,
	}
}

// Register handles account registration.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	authReq := auth.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
	}
	var resp auth.RegisterResponse

	if err := helper.CallRequestReplyService(
		c.UserContext(), h.authContainer, "register",
		json.Marshal, json.Unmarshal, &authReq, &resp,
	); err != nil {
		return h.handleAuthError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(UserResponse{
		ID:        resp.ID,
		Email:     resp.Email,
		CreatedAt: resp.CreatedAt,
	})
}

// Login handles account login.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	authReq := auth.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	}
	var resp auth.LoginResponse

	if err := helper.CallRequestReplyService(
		c.UserContext(), h.authContainer, "login",
		json.Marshal, json.Unmarshal, &authReq, &resp,
	); err != nil {
		return h.handleAuthError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(TokenResponse{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
		TokenType:    resp.TokenType,
	})
}

// Refresh handles token refresh.
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.RefreshToken == "" {
		return badRequest(c, "Refresh token is required")
	}

	authReq := auth.RefreshRequest{
		RefreshToken: req.RefreshToken,
	}
	var resp auth.RefreshResponse

	if err := helper.CallRequestReplyService(
		c.UserContext(), h.authContainer, "refresh-token",
		json.Marshal, json.Unmarshal, &authReq, &resp,
	); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid or expired refresh token",
		})
	}

	return c.Status(fiber.StatusOK).JSON(TokenResponse{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
		TokenType:    resp.TokenType,
	})
}

// Me returns the authenticated caller's account.
func (h *Handlers) Me(c *fiber.Ctx) error {
	userID, ok := principalID(c)
	if !ok {
		return unauthorized(c)
	}

	user, err := h.users.GetUser(c.UserContext(), userID)
	if err != nil {
		// The account can vanish between token mint and use.
		if strings.Contains(err.Error(), "user not found") {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Error:   "not_found",
				Message: "Account not found",
			})
		}
		log.Printf("[api] Failed to load account %d: %v", userID, err)
		return internalError(c, "Failed to load account")
	}

	return c.JSON(UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

// ListTasks returns the caller's tasks, newest first.
func (h *Handlers) ListTasks(c *fiber.Ctx) error {
	userID, ok := principalID(c)
	if !ok {
		return unauthorized(c)
	}

	tasks, err := h.tasks.List(c.UserContext(), userID)
	if err != nil {
		log.Printf("[api] Failed to list tasks: %v", err)
		return internalError(c, "Failed to fetch tasks")
	}

	return c.Status(fiber.StatusOK).JSON(tasks)
}

// CreateTask creates a task for the caller. Title must be a non-empty
// string after trimming; mistyped detail/state fields are dropped
// rather than rejected.
func (h *Handlers) CreateTask(c *fiber.Ctx) error {
	userID, ok := principalID(c)
	if !ok {
		return unauthorized(c)
	}

	var body struct {
		Title  any `json:"title"`
		Detail any `json:"detail"`
		State  any `json:"state"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}

	title, isString := body.Title.(string)
	title = strings.TrimSpace(title)
	if !isString || title == "" {
		return badRequest(c, "Title is required")
	}

	var detail *string
	if s, ok := body.Detail.(string); ok {
		detail = &s
	}
	state := false
	if b, ok := body.State.(bool); ok {
		state = b
	}

	created, err := h.tasks.Create(c.UserContext(), userID, title, detail, state)
	if err != nil {
		log.Printf("[api] Failed to create task: %v", err)
		return internalError(c, "Failed to create task")
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// UpdateTask applies a partial update to one of the caller's tasks. At
// least one of title/detail/state must be present in the body; only
// well-typed fields are forwarded. An explicit null detail clears it.
func (h *Handlers) UpdateTask(c *fiber.Ctx) error {
	userID, ok := principalID(c)
	if !ok {
		return unauthorized(c)
	}

	taskID, ok := parseTaskID(c.Params("id"))
	if !ok {
		return badRequest(c, "Invalid task id")
	}

	var body struct {
		Title  json.RawMessage `json:"title"`
		Detail json.RawMessage `json:"detail"`
		State  json.RawMessage `json:"state"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if body.Title == nil && body.Detail == nil && body.State == nil {
		return badRequest(c, "No update fields provided")
	}

	patch, err := buildPatch(body.Title, body.Detail, body.State)
	if err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.tasks.Update(c.UserContext(), userID, taskID, patch)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return notFound(c)
		}
		log.Printf("[api] Failed to update task %d: %v", taskID, err)
		return internalError(c, "Failed to update task")
	}

	return c.Status(fiber.StatusOK).JSON(updated)
}

// DeleteTask permanently removes one of the caller's tasks.
func (h *Handlers) DeleteTask(c *fiber.Ctx) error {
	userID, ok := principalID(c)
	if !ok {
		return unauthorized(c)
	}

	taskID, ok := parseTaskID(c.Params("id"))
	if !ok {
		return badRequest(c, "Invalid task id")
	}

	if err := h.tasks.Remove(c.UserContext(), userID, taskID); err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return notFound(c)
		}
		log.Printf("[api] Failed to delete task %d: %v", taskID, err)
		return internalError(c, "Failed to delete task")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// principalID extracts the authenticated account id set by the
// middleware.
func principalID(c *fiber.Ctx) (uint, bool) {
	claims, ok := c.Locals(UserContextKey).(*udomain.Claims)
	if !ok || claims.UserID == 0 {
		return 0, false
	}
	return claims.UserID, true
}

// parseTaskID parses a path id; only positive integers are valid.
func parseTaskID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// buildPatch lifts well-typed body fields into a Patch, dropping
// mistyped ones silently. A well-typed title must survive trimming,
// since a persisted title is never blank.
func buildPatch(title, detail, state json.RawMessage) (tdomain.Patch, error) {
	var patch tdomain.Patch

	if title != nil {
		// Decoding into a pointer keeps a JSON null distinguishable
		// from a real string; null counts as mistyped here.
		var s *string
		if err := json.Unmarshal(title, &s); err == nil && s != nil {
			trimmed := strings.TrimSpace(*s)
			if trimmed == "" {
				return patch, errors.New("Title cannot be empty")
			}
			patch.Title = tdomain.Some(trimmed)
		}
	}

	if detail != nil {
		// Here null is meaningful: it clears the stored detail.
		var d *string
		if err := json.Unmarshal(detail, &d); err == nil {
			patch.Detail = tdomain.Some(d)
		}
	}

	if state != nil {
		var b *bool
		if err := json.Unmarshal(state, &b); err == nil && b != nil {
			patch.State = tdomain.Some(*b)
		}
	}

	return patch, nil
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "bad_request",
		Message: message,
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error:   "unauthorized",
		Message: "Unauthorized",
	})
}

func notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
		Error:   "not_found",
		Message: "Task not found",
	})
}

func internalError(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "internal_error",
		Message: message,
	})
}

// handleAuthError maps auth service failures that crossed the service
// container back to transport responses without exposing internals.
func (h *Handlers) handleAuthError(c *fiber.Ctx, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "invalid email or password"):
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid email or password",
		})
	case strings.Contains(errStr, "user with this email already exists"):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "conflict",
			Message: "User with this email already exists",
		})
	case strings.Contains(errStr, "invalid email format"):
		return badRequest(c, "Invalid email format")
	case strings.Contains(errStr, "password must be at least"):
		return badRequest(c, "Password must be at least 8 characters")
	case strings.Contains(errStr, "password must be at most"):
		return badRequest(c, "Password must be at most 72 characters")
	default:
		log.Printf("[api] Internal error: %v", err)
		return internalError(c, "An internal error occurred")
	}
}
