package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/creativia/api/internal/domain"
	"github.com/creativia/api/internal/platform/auth"
	"github.com/creativia/api/internal/platform/httpx"
	"github.com/creativia/api/internal/services"
)

// ContestHandlers exposes contest listing, publication and lifecycle endpoints.
type ContestHandlers struct {
	authn    *auth.Authenticator
	contests services.ContestService
}

// NewContestHandlers constructs contest handlers guarded by Firebase authentication.
func NewContestHandlers(authn *auth.Authenticator, contests services.ContestService) *ContestHandlers {
	return &ContestHandlers{
		authn:    authn,
		contests: contests,
	}
}

// Routes registers contest endpoints under the provided router.
func (h *ContestHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/contests", h.listActive)
	r.Get("/contests/{contestId}", h.get)
	r.Get("/postedcontest/{email}", h.listByOwner)
	if h.authn != nil {
		r.With(h.authn.RequireFirebaseAuth(auth.RoleCreator, auth.RoleAdmin)).Post("/contests", h.create)
		r.With(h.authn.RequireFirebaseAuth(auth.RoleAdmin)).Delete("/contests/{contestId}", h.delete)
		r.With(h.authn.RequireFirebaseAuth(auth.RoleAdmin)).Get("/manage-contests", h.listAll)
		r.With(h.authn.RequireFirebaseAuth(auth.RoleAdmin)).Patch("/contest/{contestId}/status", h.updateStatus)
		r.With(h.authn.RequireFirebaseAuth(auth.RoleAdmin)).Patch("/contest/{contestId}/winner", h.declareWinner)
		return
	}
	r.Post("/contests", h.create)
	r.Delete("/contests/{contestId}", h.delete)
	r.Get("/manage-contests", h.listAll)
	r.Patch("/contest/{contestId}/status", h.updateStatus)
	r.Patch("/contest/{contestId}/winner", h.declareWinner)
}

type createContestRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Banner      string `json:"banner"`
	Price       int64  `json:"price"`
	OwnerName   string `json:"ownerName"`
	OwnerEmail  string `json:"ownerEmail"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type declareWinnerRequest struct {
	WinnerName  string `json:"winnerName"`
	WinnerEmail string `json:"winnerEmail"`
}

type contestOwnerResponse struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type contestWinnerResponse struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	DeclaredAt string `json:"declaredAt"`
}

type contestResponse struct {
	ID               string                 `json:"id"`
	Title            string                 `json:"title"`
	Description      string                 `json:"description,omitempty"`
	Category         string                 `json:"category"`
	Banner           string                 `json:"banner,omitempty"`
	Price            int64                  `json:"price"`
	Owner            contestOwnerResponse   `json:"owner"`
	Status           string                 `json:"status"`
	ParticipantCount int64                  `json:"participantCount"`
	Winner           *contestWinnerResponse `json:"winner,omitempty"`
	CreatedAt        string                 `json:"createdAt,omitempty"`
	UpdatedAt        string                 `json:"updatedAt,omitempty"`
}

func toContestResponse(contest services.Contest) contestResponse {
	resp := contestResponse{
		ID:          contest.ID,
		Title:       contest.Title,
		Description: contest.Description,
		Category:    contest.Category,
		Banner:      contest.Banner,
		Price:       contest.Price,
		Owner: contestOwnerResponse{
			Name:  contest.Owner.Name,
			Email: contest.Owner.Email,
		},
		Status:           string(contest.Status),
		ParticipantCount: contest.ParticipantCount,
		CreatedAt:        formatTime(contest.CreatedAt),
		UpdatedAt:        formatTime(contest.UpdatedAt),
	}
	if contest.Winner != nil {
		resp.Winner = &contestWinnerResponse{
			Name:       contest.Winner.Name,
			Email:      contest.Winner.Email,
			DeclaredAt: formatTime(contest.Winner.DeclaredAt),
		}
	}
	return resp
}

func contestsPayload(contests []services.Contest) []contestResponse {
	payload := make([]contestResponse, 0, len(contests))
	for _, contest := range contests {
		payload = append(payload, toContestResponse(contest))
	}
	return payload
}

func (h *ContestHandlers) listActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.contests == nil {
		httpx.WriteError(ctx, w, httpx.NewError("contests_unavailable", "contest service unavailable", http.StatusServiceUnavailable))
		return
	}

	contests, err := h.contests.ListContests(ctx, services.ContestListFilter{Status: string(domain.ContestStatusActive)})
	if err != nil {
		writeContestError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, contestsPayload(contests))
}

func (h *ContestHandlers) listAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.contests == nil {
		httpx.WriteError(ctx, w, httpx.NewError("contests_unavailable", "contest service unavailable", http.StatusServiceUnavailable))
		return
	}

	contests, err := h.contests.ListContests(ctx, services.ContestListFilter{})
	if err != nil {
		writeContestError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, contestsPayload(contests))
}

func (h *ContestHandlers) listByOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.contests == nil {
		httpx.WriteError(ctx, w, httpx.NewError("contests_unavailable", "contest service unavailable", http.StatusServiceUnavailable))
		return
	}

	email := strings.TrimSpace(chi.URLParam(r, "email"))
	if email == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "owner email is required", http.StatusBadRequest))
		return
	}

	contests, err := h.contests.ListContests(ctx, services.ContestListFilter{OwnerEmail: email})
	if err != nil {
		writeContestError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, contestsPayload(contests))
}

func (h *ContestHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.contests == nil {
		httpx.WriteError(ctx, w, httpx.NewError("contests_unavailable", "contest service unavailable", http.StatusServiceUnavailable))
		return
	}

	contestID := strings.TrimSpace(chi.URLParam(r, "contestId"))
	if contestID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "contest id is required", http.StatusBadRequest))
		return
	}

	contest, err := h.contests.GetContest(ctx, contestID)
	if err != nil {
		writeContestError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toContestResponse(contest))
}

func (h *ContestHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.contests == nil {
		httpx.WriteError(ctx, w, httpx.NewError("contests_unavailable", "contest service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, defaultMaxBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req createContestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.CreateContestCommand{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Banner:      req.Banner,
		Price:       req.Price,
		OwnerName:   req.OwnerName,
		OwnerEmail:  req.OwnerEmail,
	}
	// The verified identity is authoritative for ownership.
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil && identity.Email != "" {
		cmd.OwnerEmail = identity.Email
	}

	contest, err := h.contests.CreateContest(ctx, cmd)
	if err != nil {
		writeContestError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, toContestResponse(contest))
}

func (h *ContestHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.contests == nil {
		httpx.WriteError(ctx, w, httpx.NewError("contests_unavailable", "contest service unavailable", http.StatusServiceUnavailable))
		return
	}

	contestID := strings.TrimSpace(chi.URLParam(r, "contestId"))
	body, err := readLimitedBody(r, defaultMaxBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req updateStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	contest, err := h.contests.UpdateStatus(ctx, services.UpdateContestStatusCommand{
		ContestID: contestID,
		Status:    req.Status,
	})
	if err != nil {
		writeContestError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toContestResponse(contest))
}

func (h *ContestHandlers) declareWinner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.contests == nil {
		httpx.WriteError(ctx, w, httpx.NewError("contests_unavailable", "contest service unavailable", http.StatusServiceUnavailable))
		return
	}

	contestID := strings.TrimSpace(chi.URLParam(r, "contestId"))
	body, err := readLimitedBody(r, defaultMaxBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req declareWinnerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	contest, err := h.contests.DeclareWinner(ctx, services.DeclareWinnerCommand{
		ContestID:   contestID,
		WinnerName:  req.WinnerName,
		WinnerEmail: req.WinnerEmail,
	})
	if err != nil {
		writeContestError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toContestResponse(contest))
}

func (h *ContestHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.contests == nil {
		httpx.WriteError(ctx, w, httpx.NewError("contests_unavailable", "contest service unavailable", http.StatusServiceUnavailable))
		return
	}

	contestID := strings.TrimSpace(chi.URLParam(r, "contestId"))
	if contestID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "contest id is required", http.StatusBadRequest))
		return
	}

	if err := h.contests.DeleteContest(ctx, contestID); err != nil {
		writeContestError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]bool{"deleted": true})
}

func writeContestError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrContestValidation), errors.Is(err, services.ErrContestInvalidStatus):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrContestNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("contest_not_found", "contest not found", http.StatusNotFound))
	case errors.Is(err, services.ErrContestIllegalTransition):
		httpx.WriteError(ctx, w, httpx.NewError("illegal_transition", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrContestWinnerRequiresActive):
		httpx.WriteError(ctx, w, httpx.NewError("contest_not_active", "winner can only be declared on an active contest", http.StatusBadRequest))
	case errors.Is(err, services.ErrContestCompleted):
		httpx.WriteError(ctx, w, httpx.NewError("contest_completed", "completed contests cannot be deleted", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("contest_error", "failed to process contest request", http.StatusInternalServerError))
	}
}
