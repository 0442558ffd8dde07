package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/creativia/api/internal/platform/auth"
	"github.com/creativia/api/internal/platform/httpx"
	"github.com/creativia/api/internal/services"
)

// UserHandlers exposes account registration and role management endpoints.
type UserHandlers struct {
	authn *auth.Authenticator
	users services.UserService
}

// NewUserHandlers constructs user handlers guarded by Firebase authentication.
func NewUserHandlers(authn *auth.Authenticator, users services.UserService) *UserHandlers {
	return &UserHandlers{
		authn: authn,
		users: users,
	}
}

// Routes registers user endpoints under the provided router.
func (h *UserHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/users", h.register)
	if h.authn != nil {
		r.With(h.authn.RequireFirebaseAuth(auth.RoleAdmin)).Get("/users", h.list)
		r.With(h.authn.RequireFirebaseAuth(auth.RoleAdmin)).Patch("/user/{userId}/role", h.updateRole)
		r.With(h.authn.RequireFirebaseAuth()).Get("/user/role", h.role)
		return
	}
	r.Get("/users", h.list)
	r.Patch("/user/{userId}/role", h.updateRole)
	r.Get("/user/role", h.role)
}

type registerUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	PhotoURL string `json:"photoURL"`
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

type userResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email"`
	PhotoURL  string `json:"photoURL,omitempty"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

func toUserResponse(user services.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		PhotoURL:  user.PhotoURL,
		Role:      string(user.Role),
		CreatedAt: formatTime(user.CreatedAt),
		UpdatedAt: formatTime(user.UpdatedAt),
	}
}

func (h *UserHandlers) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("users_unavailable", "user service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, defaultMaxBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req registerUserRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	user, created, err := h.users.RegisterUser(ctx, services.RegisterUserCommand{
		Name:     req.Name,
		Email:    req.Email,
		PhotoURL: req.PhotoURL,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	if !created {
		writeJSONResponse(w, http.StatusOK, map[string]string{"message": "user already exists"})
		return
	}
	writeJSONResponse(w, http.StatusCreated, toUserResponse(user))
}

func (h *UserHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("users_unavailable", "user service unavailable", http.StatusServiceUnavailable))
		return
	}

	users, err := h.users.ListUsers(ctx)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	payload := make([]userResponse, 0, len(users))
	for _, user := range users {
		payload = append(payload, toUserResponse(user))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *UserHandlers) updateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("users_unavailable", "user service unavailable", http.StatusServiceUnavailable))
		return
	}

	userID := strings.TrimSpace(chi.URLParam(r, "userId"))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, defaultMaxBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req updateRoleRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	user, err := h.users.UpdateRole(ctx, services.UpdateUserRoleCommand{
		UserID: userID,
		Role:   req.Role,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toUserResponse(user))
}

func (h *UserHandlers) role(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.Email) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"role": identity.Role})
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, errBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
}

func writeUserError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrUserValidation), errors.Is(err, services.ErrUserInvalidRole):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "user not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("user_error", "failed to process user request", http.StatusInternalServerError))
	}
}
