package mrp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	svctest "github.com/vsinha/mrp-planner/pkg/application/services/testing"
	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/events"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/lock"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/repositories/memory"
	infratest "github.com/vsinha/mrp-planner/pkg/infrastructure/testing"
)

const actor = "planner-1"

// hookResolver runs hook once, on the first BOM lookup of a calculation
type hookResolver struct {
	next repositories.BOMResolver
	once sync.Once
	hook func()
}

func (h *hookResolver) ComponentsOf(ctx context.Context, id entities.ItemID) ([]entities.BOMEdge, error) {
	if h.hook != nil {
		h.once.Do(h.hook)
	}
	return h.next.ComponentsOf(ctx, id)
}

// flakyStatusRuns fails status writes into failTo. failures counts down to
// zero; a negative value fails every write.
type flakyStatusRuns struct {
	*memory.RunRepository
	failTo   entities.RunStatus
	failures int
	attempts int
}

func (r *flakyStatusRuns) UpdateStatus(ctx context.Context, id uuid.UUID, change entities.StatusChange) error {
	if change.To == r.failTo {
		r.attempts++
		if r.failures != 0 {
			r.failures--
			return errors.New("connection reset by peer")
		}
	}
	return r.RunRepository.UpdateStatus(ctx, id, change)
}

type controllerFixture struct {
	scenario *infratest.Scenario
	resolver *hookResolver
	runs     *memory.RunRepository
	locker   *lock.MemoryLocker
	sink     *memory.RequisitionSink
	events   *events.InMemoryEventStore
	ctrl     *Controller
}

func newControllerFixture(scenario *infratest.Scenario, override func(*Dependencies)) *controllerFixture {
	f := &controllerFixture{
		scenario: scenario,
		resolver: &hookResolver{next: scenario.BOM},
		runs:     memory.NewRunRepository(),
		locker:   lock.NewMemoryLocker(),
		sink:     memory.NewRequisitionSink(),
		events:   events.NewInMemoryEventStore(),
	}

	deps := Dependencies{
		BOM:       f.resolver,
		Items:     scenario.Items,
		Snapshots: scenario.Snapshots,
		Runs:      f.runs,
		Ledger:    f.runs,
		Locker:    f.locker,
		Sink:      f.sink,
		Publisher: f.events,
	}
	if override != nil {
		override(&deps)
	}

	f.ctrl = NewController(deps, Config{ShortageScope: ScopeLeadTime, StatusRetryBase: time.Millisecond})
	return f
}

func (f *controllerFixture) newRun(t *testing.T) *entities.MRPRun {
	t.Helper()
	run, err := f.ctrl.CreateRun(context.Background(), f.scenario.Horizon, actor)
	require.NoError(t, err)
	return run
}

func (f *controllerFixture) status(t *testing.T, runID uuid.UUID) *entities.MRPRun {
	t.Helper()
	run, err := f.ctrl.GetRun(context.Background(), runID)
	require.NoError(t, err)
	return run
}

func (f *controllerFixture) eventTypes(t *testing.T, runID uuid.UUID) []string {
	t.Helper()
	evs, err := f.events.ReadEvents(events.RunStream(runID), 0)
	require.NoError(t, err)
	types := make([]string, len(evs))
	for i, e := range evs {
		types[i] = e.Type()
	}
	return types
}

func TestController_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(infratest.BuildSimpleScenario(), nil)
	run := f.newRun(t)
	assert.Equal(t, entities.RunDraft, run.Status)

	result, err := f.ctrl.Calculate(ctx, run.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, entities.RunCalculated, result.Run.Status)
	assert.Equal(t, 2, result.RequirementCount)
	assert.Equal(t, 1, result.ShortageCount)
	assert.Equal(t, 2, result.Levels)
	assert.NotNil(t, result.Run.CalculationStartedAt)
	assert.NotNil(t, result.Run.CalculationFinishedAt)

	reqs, err := f.ctrl.GetRequirements(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, entities.ItemID("ASSEMBLY_A"), reqs[0].ItemID)

	shortages, err := f.ctrl.GetShortages(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, shortages, 1)
	assert.Equal(t, entities.ItemID("COMPONENT_A"), shortages[0].ItemID)
	assertDecimal(t, 15, shortages[0].Quantity, "component shortage")
	assert.Equal(t, svctest.Week(1), shortages[0].NeededByDate)

	gen, err := f.ctrl.GeneratePRs(ctx, run.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, entities.RunPRsGenerated, gen.Run.Status)
	require.Len(t, gen.Requisitions, 1)
	assert.Equal(t, "SUP-A", gen.Requisitions[0].GroupKey)
	assert.Equal(t, 1, gen.LineCount)
	assert.Len(t, f.sink.Created(), 1)

	assert.Equal(t, entities.RunPRsGenerated, f.status(t, run.ID).Status)
	assert.Equal(t, []string{
		events.RunCreatedEvent,
		events.RunCalculationStartedEvent,
		events.RunCalculatedEvent,
		events.RequisitionsGeneratedEvent,
	}, f.eventTypes(t, run.ID))

	_, err = f.ctrl.GeneratePRs(ctx, run.ID, actor)
	assert.ErrorIs(t, err, entities.ErrAlreadyGenerated)
	assert.Len(t, f.sink.Created(), 1)
}

func TestController_StateGuards(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(infratest.BuildSimpleScenario(), nil)
	run := f.newRun(t)

	_, err := f.ctrl.GeneratePRs(ctx, run.ID, actor)
	assert.ErrorIs(t, err, entities.ErrInvalidRunState)
	assert.Equal(t, entities.RunDraft, f.status(t, run.ID).Status)

	err = f.ctrl.RequestCancel(ctx, run.ID, actor)
	assert.ErrorIs(t, err, entities.ErrInvalidRunState)

	_, err = f.ctrl.RetryRun(ctx, run.ID, actor)
	assert.ErrorIs(t, err, entities.ErrInvalidRunState)

	_, err = f.ctrl.Calculate(ctx, run.ID, actor)
	require.NoError(t, err)

	_, err = f.ctrl.Calculate(ctx, run.ID, actor)
	assert.ErrorIs(t, err, entities.ErrInvalidRunState)
	assert.Equal(t, entities.RunCalculated, f.status(t, run.ID).Status)
}

func TestController_InputValidation(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(infratest.BuildSimpleScenario(), nil)
	run := f.newRun(t)

	_, err := f.ctrl.Calculate(ctx, run.ID, "")
	assert.ErrorIs(t, err, entities.ErrValidation)

	_, err = f.ctrl.GeneratePRs(ctx, run.ID, "")
	assert.ErrorIs(t, err, entities.ErrValidation)

	_, err = f.ctrl.CreateRun(ctx, f.scenario.Horizon, "")
	assert.ErrorIs(t, err, entities.ErrValidation)

	_, err = f.ctrl.GetRun(ctx, uuid.Nil)
	assert.ErrorIs(t, err, entities.ErrValidation)

	_, err = f.ctrl.GetRun(ctx, uuid.New())
	assert.ErrorIs(t, err, entities.ErrRunNotFound)

	_, err = f.ctrl.Calculate(ctx, uuid.New(), actor)
	assert.ErrorIs(t, err, entities.ErrRunNotFound)
}

func TestController_BusyRun(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(infratest.BuildSimpleScenario(), nil)
	run := f.newRun(t)

	lease, err := f.locker.TryLock(ctx, run.ID)
	require.NoError(t, err)

	_, err = f.ctrl.Calculate(ctx, run.ID, actor)
	assert.ErrorIs(t, err, entities.ErrRunBusy)
	assert.Equal(t, entities.RunDraft, f.status(t, run.ID).Status)

	require.NoError(t, lease.Release(ctx))
	_, err = f.ctrl.Calculate(ctx, run.ID, actor)
	assert.NoError(t, err)
}

func TestController_NoShortages(t *testing.T) {
	ctx := context.Background()
	scenario := infratest.BuildSimpleScenario()
	require.NoError(t, scenario.Snapshots.LoadSupply(ctx, []*entities.SupplyRecord{
		svctest.MustSupply("COMPONENT_A", 100, svctest.Monday, entities.OnHand),
	}))

	f := newControllerFixture(scenario, nil)
	run := f.newRun(t)

	result, err := f.ctrl.Calculate(ctx, run.ID, actor)
	require.NoError(t, err)
	assert.Zero(t, result.ShortageCount)

	_, err = f.ctrl.GeneratePRs(ctx, run.ID, actor)
	assert.ErrorIs(t, err, entities.ErrNoShortages)
	assert.Equal(t, entities.RunCalculated, f.status(t, run.ID).Status)
	assert.Empty(t, f.sink.Created())
}

func TestController_CyclicBOMFailsRunAndRetry(t *testing.T) {
	ctx := context.Background()
	scenario := infratest.BuildSimpleScenario()
	scenario.BOM.AddEdge(*svctest.MustEdge("COMPONENT_A", "ASSEMBLY_A", "1", 0))

	f := newControllerFixture(scenario, nil)
	run := f.newRun(t)

	_, err := f.ctrl.Calculate(ctx, run.ID, actor)
	require.ErrorIs(t, err, entities.ErrCyclicBOM)

	failed := f.status(t, run.ID)
	assert.Equal(t, entities.RunFailed, failed.Status)
	assert.Equal(t, entities.FailureError, failed.FailureReason)
	assert.Contains(t, failed.LastError, "cycle")
	assert.Contains(t, f.eventTypes(t, run.ID), events.RunFailedEvent)

	reqs, err := f.ctrl.GetRequirements(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, reqs)

	_, err = f.ctrl.Calculate(ctx, run.ID, actor)
	assert.ErrorIs(t, err, entities.ErrInvalidRunState)

	retry, err := f.ctrl.RetryRun(ctx, run.ID, "planner-2")
	require.NoError(t, err)
	assert.NotEqual(t, run.ID, retry.ID)
	assert.Equal(t, entities.RunDraft, retry.Status)
	require.NotNil(t, retry.RetryOf)
	assert.Equal(t, run.ID, *retry.RetryOf)
	assert.Equal(t, run.Horizon, retry.Horizon)
	assert.Equal(t, entities.RunFailed, f.status(t, run.ID).Status)
}

func TestController_CancelRequestedDuringCalculation(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(infratest.BuildSimpleScenario(), nil)
	run := f.newRun(t)

	f.resolver.hook = func() {
		require.NoError(t, f.ctrl.RequestCancel(ctx, run.ID, "supervisor"))
	}

	_, err := f.ctrl.Calculate(ctx, run.ID, actor)
	require.ErrorIs(t, err, entities.ErrCancelled)

	failed := f.status(t, run.ID)
	assert.Equal(t, entities.RunFailed, failed.Status)
	assert.Equal(t, entities.FailureCancelled, failed.FailureReason)
	assert.Contains(t, f.eventTypes(t, run.ID), events.RunCancelRequestedEvent)

	reqs, err := f.ctrl.GetRequirements(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestController_CallerContextCancelled(t *testing.T) {
	f := newControllerFixture(infratest.BuildSimpleScenario(), nil)
	run := f.newRun(t)

	ctx, cancel := context.WithCancel(context.Background())
	f.resolver.hook = cancel

	_, err := f.ctrl.Calculate(ctx, run.ID, actor)
	require.ErrorIs(t, err, entities.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)

	failed := f.status(t, run.ID)
	assert.Equal(t, entities.RunFailed, failed.Status)
	assert.Equal(t, entities.FailureCancelled, failed.FailureReason)

	lease, err := f.locker.TryLock(context.Background(), run.ID)
	require.NoError(t, err, "lock must be released after a cancelled calculation")
	require.NoError(t, lease.Release(context.Background()))
}

func TestController_SnapshotUnavailable(t *testing.T) {
	ctx := context.Background()
	provider := &svctest.MockSnapshotProvider{}
	provider.On("DemandedItems", mock.Anything, mock.Anything).Return(nil, errors.New("erp down"))

	f := newControllerFixture(infratest.BuildSimpleScenario(), func(d *Dependencies) {
		d.Snapshots = NewRetryingSnapshotProvider(provider, 2, time.Millisecond)
	})
	run := f.newRun(t)

	_, err := f.ctrl.Calculate(ctx, run.ID, actor)
	require.ErrorIs(t, err, entities.ErrSnapshotUnavailable)

	failed := f.status(t, run.ID)
	assert.Equal(t, entities.RunFailed, failed.Status)
	assert.Equal(t, entities.FailureError, failed.FailureReason)
	provider.AssertNumberOfCalls(t, "DemandedItems", 2)
}

func TestController_GenerationFailureFailsRun(t *testing.T) {
	ctx := context.Background()
	sink := &svctest.MockRequisitionSink{}
	sink.On("Create", mock.Anything, mock.Anything).Return("", errors.New("procurement offline"))

	f := newControllerFixture(infratest.BuildSimpleScenario(), func(d *Dependencies) {
		d.Sink = sink
	})
	run := f.newRun(t)

	_, err := f.ctrl.Calculate(ctx, run.ID, actor)
	require.NoError(t, err)

	_, err = f.ctrl.GeneratePRs(ctx, run.ID, actor)
	require.ErrorContains(t, err, "procurement offline")

	failed := f.status(t, run.ID)
	assert.Equal(t, entities.RunFailed, failed.Status)
	assert.Equal(t, entities.FailureError, failed.FailureReason)
	assert.Contains(t, failed.LastError, "procurement offline")
}

func TestController_ConcurrentCalculateSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(infratest.BuildSimpleScenario(), nil)
	run := f.newRun(t)

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ctrl.Calculate(ctx, run.ID, actor)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t,
			errors.Is(err, entities.ErrRunBusy) || errors.Is(err, entities.ErrInvalidRunState),
			"unexpected error %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, entities.RunCalculated, f.status(t, run.ID).Status)
}

func TestController_SingleItemOnHandShortfall(t *testing.T) {
	ctx := context.Background()
	scenario := &infratest.Scenario{
		BOM:       memory.NewBOMRepository(0),
		Items:     memory.NewItemRepository(1),
		Snapshots: memory.NewSnapshotStore(),
		Horizon:   svctest.MustHorizon(svctest.Monday, 4),
	}
	require.NoError(t, scenario.Items.LoadItems(ctx, []*entities.Item{svctest.MustItem("X", 0, 0, "")}))
	require.NoError(t, scenario.Snapshots.LoadSupply(ctx, []*entities.SupplyRecord{
		svctest.MustSupply("X", 10, svctest.Monday, entities.OnHand),
	}))
	require.NoError(t, scenario.Snapshots.LoadDemand(ctx, []*entities.DemandRecord{
		svctest.MustDemand("X", 30, svctest.Week(1)),
	}))

	f := newControllerFixture(scenario, nil)
	run := f.newRun(t)

	result, err := f.ctrl.Calculate(ctx, run.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ShortageCount)

	shortages, err := f.ctrl.GetShortages(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, shortages, 1)
	assert.Equal(t, entities.ItemID("X"), shortages[0].ItemID)
	assertDecimal(t, 20, shortages[0].Quantity, "shortage")

	gen, err := f.ctrl.GeneratePRs(ctx, run.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, 1, gen.LineCount)
	require.Len(t, gen.Requisitions, 1)
	assert.Equal(t, entities.UnassignedGroup, gen.Requisitions[0].GroupKey)
	require.Len(t, gen.Requisitions[0].Lines, 1)
	line := gen.Requisitions[0].Lines[0]
	assert.Equal(t, entities.ItemID("X"), line.ItemID)
	assertDecimal(t, 20, line.Quantity, "line quantity")
	assert.Equal(t, svctest.Week(1), line.NeededBy)
}

func TestController_CompletionWriteFailureFailsRun(t *testing.T) {
	ctx := context.Background()
	var runs *flakyStatusRuns
	f := newControllerFixture(infratest.BuildSimpleScenario(), func(d *Dependencies) {
		runs = &flakyStatusRuns{
			RunRepository: d.Runs.(*memory.RunRepository),
			failTo:        entities.RunPRsGenerated,
			failures:      -1,
		}
		d.Runs = runs
	})
	run := f.newRun(t)

	_, err := f.ctrl.Calculate(ctx, run.ID, actor)
	require.NoError(t, err)

	_, err = f.ctrl.GeneratePRs(ctx, run.ID, actor)
	require.ErrorContains(t, err, "connection reset by peer")
	assert.Equal(t, 1+statusWriteRetries, runs.attempts)

	failed := f.status(t, run.ID)
	assert.Equal(t, entities.RunFailed, failed.Status)
	assert.Equal(t, entities.FailureError, failed.FailureReason)
	assert.Contains(t, failed.LastError, "connection reset by peer")
	assert.Contains(t, f.eventTypes(t, run.ID), events.RunFailedEvent)
	assert.Len(t, f.sink.Created(), 1)

	lease, err := f.locker.TryLock(ctx, run.ID)
	require.NoError(t, err)
	require.NoError(t, lease.Release(ctx))

	_, err = f.ctrl.RetryRun(ctx, run.ID, actor)
	assert.NoError(t, err)
}

func TestController_CompletionWriteRetried(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(infratest.BuildSimpleScenario(), func(d *Dependencies) {
		d.Runs = &flakyStatusRuns{
			RunRepository: d.Runs.(*memory.RunRepository),
			failTo:        entities.RunCalculated,
			failures:      1,
		}
	})
	run := f.newRun(t)

	result, err := f.ctrl.Calculate(ctx, run.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, entities.RunCalculated, result.Run.Status)
	assert.Equal(t, entities.RunCalculated, f.status(t, run.ID).Status)
}

func TestController_FailStaleRuns(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(infratest.BuildSimpleScenario(), nil)

	start, err := entities.ApplyEvent(entities.RunDraft, entities.EventStartCalculation)
	require.NoError(t, err)
	startedAt := func(t *testing.T, at time.Time) *entities.MRPRun {
		t.Helper()
		run := f.newRun(t)
		require.NoError(t, f.runs.UpdateStatus(ctx, run.ID, entities.StatusChange{Transition: start, At: at}))
		return run
	}

	abandoned := startedAt(t, time.Now().Add(-time.Hour))
	alive := startedAt(t, time.Now().Add(-time.Hour))
	recent := startedAt(t, time.Now())
	draft := f.newRun(t)

	lease, err := f.locker.TryLock(ctx, alive.ID)
	require.NoError(t, err)
	defer lease.Release(ctx)

	n, err := f.ctrl.FailStaleRuns(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	failed := f.status(t, abandoned.ID)
	assert.Equal(t, entities.RunFailed, failed.Status)
	assert.Equal(t, entities.FailureError, failed.FailureReason)
	assert.Contains(t, failed.LastError, entities.ErrRunAbandoned.Error())
	assert.Contains(t, f.eventTypes(t, abandoned.ID), events.RunFailedEvent)

	assert.Equal(t, entities.RunCalculating, f.status(t, alive.ID).Status)
	assert.Equal(t, entities.RunCalculating, f.status(t, recent.ID).Status)
	assert.Equal(t, entities.RunDraft, f.status(t, draft.ID).Status)

	n, err = f.ctrl.FailStaleRuns(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)
}
