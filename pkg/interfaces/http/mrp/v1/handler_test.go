package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/mrp-planner/pkg/application/dto"
	"github.com/vsinha/mrp-planner/pkg/application/services/mrp"
	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/lock"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/repositories/memory"
	infratest "github.com/vsinha/mrp-planner/pkg/infrastructure/testing"
)

type mockRunService struct {
	mock.Mock
}

func (m *mockRunService) CreateRun(ctx context.Context, horizon entities.Horizon, actorID string) (*entities.MRPRun, error) {
	args := m.Called(ctx, horizon, actorID)
	run, _ := args.Get(0).(*entities.MRPRun)
	return run, args.Error(1)
}

func (m *mockRunService) GetRun(ctx context.Context, runID uuid.UUID) (*entities.MRPRun, error) {
	args := m.Called(ctx, runID)
	run, _ := args.Get(0).(*entities.MRPRun)
	return run, args.Error(1)
}

func (m *mockRunService) Calculate(ctx context.Context, runID uuid.UUID, actorID string) (*dto.RunResult, error) {
	args := m.Called(ctx, runID, actorID)
	res, _ := args.Get(0).(*dto.RunResult)
	return res, args.Error(1)
}

func (m *mockRunService) GetRequirements(ctx context.Context, runID uuid.UUID) ([]entities.MRPRequirement, error) {
	args := m.Called(ctx, runID)
	reqs, _ := args.Get(0).([]entities.MRPRequirement)
	return reqs, args.Error(1)
}

func (m *mockRunService) GetShortages(ctx context.Context, runID uuid.UUID) ([]entities.MRPShortage, error) {
	args := m.Called(ctx, runID)
	shortages, _ := args.Get(0).([]entities.MRPShortage)
	return shortages, args.Error(1)
}

func (m *mockRunService) GeneratePRs(ctx context.Context, runID uuid.UUID, actorID string) (*dto.GenerationResult, error) {
	args := m.Called(ctx, runID, actorID)
	res, _ := args.Get(0).(*dto.GenerationResult)
	return res, args.Error(1)
}

func (m *mockRunService) RequestCancel(ctx context.Context, runID uuid.UUID, actorID string) error {
	return m.Called(ctx, runID, actorID).Error(0)
}

func (m *mockRunService) RetryRun(ctx context.Context, failedRunID uuid.UUID, actorID string) (*entities.MRPRun, error) {
	args := m.Called(ctx, failedRunID, actorID)
	run, _ := args.Get(0).(*entities.MRPRun)
	return run, args.Error(1)
}

func newTestRouter(svc RunService) http.Handler {
	r := chi.NewRouter()
	NewRunHandler(svc, 7).Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, actorID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actorID != "" {
		req.Header.Set(ActorHeader, actorID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("op: %w", entities.ErrValidation), http.StatusBadRequest},
		{entities.ErrRunNotFound, http.StatusNotFound},
		{entities.ErrItemNotFound, http.StatusNotFound},
		{&entities.InvalidTransitionError{From: entities.RunDraft, Event: entities.EventStartGeneration}, http.StatusConflict},
		{entities.ErrRunBusy, http.StatusConflict},
		{entities.ErrAlreadyGenerated, http.StatusConflict},
		{fmt.Errorf("x: %w", entities.ErrCancelled), http.StatusConflict},
		{&entities.CyclicBOMError{Chain: []entities.ItemID{"A", "B", "A"}}, http.StatusUnprocessableEntity},
		{entities.ErrNoShortages, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: timeout", entities.ErrSnapshotUnavailable), http.StatusBadGateway},
		{fmt.Errorf("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, mapError(tt.err))
		})
	}
}

func TestHandler_InvalidRunID(t *testing.T) {
	svc := &mockRunService{}
	rec := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/mrp/runs/not-a-uuid", "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "GetRun", mock.Anything, mock.Anything)
}

func TestHandler_CreateRunRejectsBadHorizon(t *testing.T) {
	svc := &mockRunService{}
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodPost, "/api/v1/mrp/runs", "planner", CreateRunRequest{
		HorizonStart: "06/01/2025",
		HorizonEnd:   "2025-02-03",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/v1/mrp/runs", "planner", CreateRunRequest{
		HorizonStart: "2025-02-03",
		HorizonEnd:   "2025-01-06",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "CreateRun", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_PassesActorAndMapsConflict(t *testing.T) {
	runID := uuid.New()
	actorID := gofakeit.Username()

	svc := &mockRunService{}
	svc.On("Calculate", mock.Anything, runID, actorID).
		Return(nil, fmt.Errorf("mrp.controller.Calculate: %w", entities.ErrRunBusy)).Once()

	rec := do(t, newTestRouter(svc), http.MethodPost, "/api/v1/mrp/runs/"+runID.String()+"/calculate", actorID, nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, http.StatusConflict, body.Code)
	assert.Contains(t, body.Message, "run busy")
	svc.AssertExpectations(t)
}

func TestHandler_EndToEnd(t *testing.T) {
	scenario := infratest.BuildSimpleScenario()
	runs := memory.NewRunRepository()
	ctrl := mrp.NewController(mrp.Dependencies{
		BOM:       scenario.BOM,
		Items:     scenario.Items,
		Snapshots: scenario.Snapshots,
		Runs:      runs,
		Ledger:    runs,
		Locker:    lock.NewMemoryLocker(),
		Sink:      memory.NewRequisitionSink(),
	}, mrp.Config{})
	router := newTestRouter(ctrl)

	rec := do(t, router, http.MethodPost, "/api/v1/mrp/runs", "planner", CreateRunRequest{
		HorizonStart: "2025-01-06",
		HorizonEnd:   "2025-02-03",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var run Run
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&run))
	assert.Equal(t, "draft", run.Status)
	assert.Equal(t, 7, run.PeriodDays)
	base := "/api/v1/mrp/runs/" + run.ID.String()

	rec = do(t, router, http.MethodPost, base+"/requisitions", "planner", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodPost, base+"/calculate", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, base+"/calculate", "planner", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var calc CalculateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&calc))
	assert.Equal(t, "calculated", calc.Run.Status)
	assert.Equal(t, 1, calc.ShortageCount)

	rec = do(t, router, http.MethodGet, base+"/shortages", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var shortages []Shortage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&shortages))
	require.Len(t, shortages, 1)
	assert.Equal(t, "COMPONENT_A", shortages[0].ItemID)
	assert.Equal(t, "15", shortages[0].Quantity.String())
	assert.Equal(t, "2025-01-13", shortages[0].NeededByDate)

	rec = do(t, router, http.MethodGet, base+"/requirements", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var reqs []Requirement
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reqs))
	assert.Len(t, reqs, 2)

	rec = do(t, router, http.MethodPost, base+"/requisitions", "planner", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var gen GenerateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&gen))
	assert.Equal(t, "prs_generated", gen.Run.Status)
	assert.Equal(t, 1, gen.LineCount)
	require.Len(t, gen.Requisitions, 1)
	assert.Equal(t, "SUP-A", gen.Requisitions[0].GroupKey)

	rec = do(t, router, http.MethodPost, base+"/requisitions", "planner", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodPost, base+"/retry", "planner", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/mrp/runs/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
