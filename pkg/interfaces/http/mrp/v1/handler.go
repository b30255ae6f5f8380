package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vsinha/mrp-planner/pkg/application/dto"
	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/logger"
)

// ActorHeader carries the opaque id of the calling user
const ActorHeader = "X-User-ID"

type RunService interface {
	CreateRun(ctx context.Context, horizon entities.Horizon, actorID string) (*entities.MRPRun, error)
	GetRun(ctx context.Context, runID uuid.UUID) (*entities.MRPRun, error)
	Calculate(ctx context.Context, runID uuid.UUID, actorID string) (*dto.RunResult, error)
	GetRequirements(ctx context.Context, runID uuid.UUID) ([]entities.MRPRequirement, error)
	GetShortages(ctx context.Context, runID uuid.UUID) ([]entities.MRPShortage, error)
	GeneratePRs(ctx context.Context, runID uuid.UUID, actorID string) (*dto.GenerationResult, error)
	RequestCancel(ctx context.Context, runID uuid.UUID, actorID string) error
	RetryRun(ctx context.Context, failedRunID uuid.UUID, actorID string) (*entities.MRPRun, error)
}

// RunHandler mounts the run endpoints on a router
type RunHandler interface {
	Routes(r chi.Router)
}

type handler struct {
	svc               RunService
	defaultPeriodDays int
}

func NewRunHandler(service RunService, defaultPeriodDays int) *handler {
	if defaultPeriodDays < 1 {
		defaultPeriodDays = 7
	}
	return &handler{svc: service, defaultPeriodDays: defaultPeriodDays}
}

// Routes mounts the run endpoints under r
func (h *handler) Routes(r chi.Router) {
	r.Route("/api/v1/mrp/runs", func(r chi.Router) {
		r.Post("/", h.CreateRun)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", h.GetRun)
			r.Post("/calculate", h.Calculate)
			r.Get("/requirements", h.GetRequirements)
			r.Get("/shortages", h.GetShortages)
			r.Post("/requisitions", h.GeneratePRs)
			r.Post("/cancel", h.Cancel)
			r.Post("/retry", h.Retry)
		})
	})
}

func (h *handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	horizon, err := h.parseHorizon(req)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.svc.CreateRun(r.Context(), horizon, actor(r))
	if err != nil {
		writeMappedError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, runToResponse(run))
}

func (h *handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseRunID(w, r)
	if !ok {
		return
	}

	run, err := h.svc.GetRun(r.Context(), runID)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, runToResponse(run))
}

func (h *handler) Calculate(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseRunID(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Calculate(r.Context(), runID, actor(r))
	if err != nil {
		writeMappedError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, CalculateResponse{
		Run:              runToResponse(res.Run),
		RequirementCount: res.RequirementCount,
		ShortageCount:    res.ShortageCount,
		Levels:           res.Levels,
		DurationMS:       res.Duration.Milliseconds(),
	})
}

func (h *handler) GetRequirements(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseRunID(w, r)
	if !ok {
		return
	}

	reqs, err := h.svc.GetRequirements(r.Context(), runID)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, requirementsToResponse(reqs))
}

func (h *handler) GetShortages(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseRunID(w, r)
	if !ok {
		return
	}

	shortages, err := h.svc.GetShortages(r.Context(), runID)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, shortagesToResponse(shortages))
}

func (h *handler) GeneratePRs(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseRunID(w, r)
	if !ok {
		return
	}

	res, err := h.svc.GeneratePRs(r.Context(), runID, actor(r))
	if err != nil {
		writeMappedError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, generationToResponse(res))
}

func (h *handler) Cancel(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseRunID(w, r)
	if !ok {
		return
	}

	if err := h.svc.RequestCancel(r.Context(), runID, actor(r)); err != nil {
		writeMappedError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) Retry(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseRunID(w, r)
	if !ok {
		return
	}

	run, err := h.svc.RetryRun(r.Context(), runID, actor(r))
	if err != nil {
		writeMappedError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, runToResponse(run))
}

func (h *handler) parseHorizon(req CreateRunRequest) (entities.Horizon, error) {
	start, err := time.Parse(time.DateOnly, req.HorizonStart)
	if err != nil {
		return entities.Horizon{}, fmt.Errorf("invalid horizon_start %q", req.HorizonStart)
	}
	end, err := time.Parse(time.DateOnly, req.HorizonEnd)
	if err != nil {
		return entities.Horizon{}, fmt.Errorf("invalid horizon_end %q", req.HorizonEnd)
	}

	periodDays := req.PeriodDays
	if periodDays == 0 {
		periodDays = h.defaultPeriodDays
	}
	return entities.NewHorizon(start, end, periodDays)
}

func actor(r *http.Request) string {
	return r.Header.Get(ActorHeader)
}

func parseRunID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid run id")
		return uuid.Nil, false
	}
	return runID, true
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error(r.Context(), "encode response", logger.ErrorF(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, ErrorResponse{Code: status, Message: msg})
}

func writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapError(err)
	if status >= http.StatusInternalServerError {
		logger.Error(r.Context(), "request failed", logger.String("path", r.URL.Path), logger.ErrorF(err))
	}
	writeError(w, r, status, err.Error())
}

func mapError(err error) int {
	switch {
	case errors.Is(err, entities.ErrValidation):
		return http.StatusBadRequest // 400
	case errors.Is(err, entities.ErrRunNotFound),
		errors.Is(err, entities.ErrItemNotFound):
		return http.StatusNotFound // 404
	case errors.Is(err, entities.ErrInvalidRunState),
		errors.Is(err, entities.ErrRunBusy),
		errors.Is(err, entities.ErrAlreadyGenerated),
		errors.Is(err, entities.ErrCancelled):
		return http.StatusConflict // 409
	case errors.Is(err, entities.ErrCyclicBOM),
		errors.Is(err, entities.ErrNoShortages):
		return http.StatusUnprocessableEntity // 422
	case errors.Is(err, entities.ErrSnapshotUnavailable):
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}
