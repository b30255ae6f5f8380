package mrp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sethvargo/go-retry"

	"github.com/vsinha/mrp-planner/pkg/application/dto"
	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/events"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/logger"
)

const (
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultStatusRetryBase = 100 * time.Millisecond
	statusWriteRetries     = 2
)

// Dependencies are the collaborators of a Controller. Grouper and Publisher are optional.
type Dependencies struct {
	BOM       repositories.BOMResolver
	Items     repositories.ItemRepository
	Snapshots repositories.SnapshotProvider
	Runs      repositories.RunRepository
	Ledger    repositories.RequisitionLedger
	Locker    repositories.RunLocker
	Sink      repositories.RequisitionSink
	Grouper   Grouper
	Publisher events.Publisher
}

type Config struct {
	MaxBOMDepth   int
	ShortageScope ShortageScope
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration

	// StatusRetryBase is the first backoff of a retried status write
	StatusRetryBase time.Duration
}

// Controller owns the run lifecycle and sequences netting, shortage
// detection and requisition generation exactly once per run.
type Controller struct {
	runs      repositories.RunRepository
	ledger    repositories.RequisitionLedger
	locker    repositories.RunLocker
	publisher events.Publisher

	netting   *NettingCalculator
	detector  *ShortageDetector
	generator *RequisitionGenerator

	readTimeout     time.Duration
	writeTimeout    time.Duration
	statusRetryBase time.Duration
	now             func() time.Time
}

func NewController(deps Dependencies, cfg Config) *Controller {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.StatusRetryBase <= 0 {
		cfg.StatusRetryBase = defaultStatusRetryBase
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}

	return &Controller{
		runs:         deps.Runs,
		ledger:       deps.Ledger,
		locker:       deps.Locker,
		publisher:    publisher,
		netting:      NewNettingCalculator(deps.BOM, deps.Items, deps.Snapshots, cfg.MaxBOMDepth),
		detector:     NewShortageDetector(cfg.ShortageScope),
		generator:    NewRequisitionGenerator(deps.Items, deps.Ledger, deps.Sink, deps.Grouper),
		readTimeout:     cfg.ReadTimeout,
		writeTimeout:    cfg.WriteTimeout,
		statusRetryBase: cfg.StatusRetryBase,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (c *Controller) CreateRun(ctx context.Context, horizon entities.Horizon, actorID string) (*entities.MRPRun, error) {
	const op = "mrp.controller.CreateRun"
	log := logger.With(logger.String("actor_id", actorID), logger.Stringer("horizon", horizon))

	run, err := entities.NewMRPRun(horizon, actorID, c.now())
	if err != nil {
		log.Warn(ctx, "invalid run", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w: %w", op, entities.ErrValidation, err)
	}

	if err := c.createRun(ctx, run); err != nil {
		log.Error(ctx, "repository create run", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info(ctx, "run created", logger.String("run_id", run.ID.String()))
	return run, nil
}

func (c *Controller) GetRun(ctx context.Context, runID uuid.UUID) (*entities.MRPRun, error) {
	const op = "mrp.controller.GetRun"

	run, err := c.getRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return run, nil
}

// Calculate moves a draft run through netting and shortage detection.
// Any failure after the run entered calculating leaves it failed.
func (c *Controller) Calculate(ctx context.Context, runID uuid.UUID, actorID string) (*dto.RunResult, error) {
	const op = "mrp.controller.Calculate"
	log := logger.With(logger.String("run_id", runID.String()), logger.String("actor_id", actorID))

	if actorID == "" {
		return nil, fmt.Errorf("%s: %w: actor id is required", op, entities.ErrValidation)
	}

	lease, err := c.lock(ctx, runID)
	if err != nil {
		log.Warn(ctx, "run lock", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer c.release(ctx, runID, lease)

	run, err := c.getRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	transition, err := entities.ApplyEvent(run.Status, entities.EventStartCalculation)
	if err != nil {
		log.Warn(ctx, "calculate rejected", logger.String("status", string(run.Status)))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.updateStatus(ctx, run, entities.StatusChange{Transition: transition, At: c.now()}); err != nil {
		log.Error(ctx, "repository update status", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.publish(ctx, events.RunCalculationStartedEvent, run.ID, events.RunCalculationStarted{RunID: run.ID, ActorID: actorID})

	started := time.Now()
	ctx = logger.WithContext(ctx, logger.String("run_id", runID.String()))

	result, err := c.netting.Calculate(ctx, run.ID, run.Horizon, c.checkpoint(run.ID))
	if err != nil {
		c.fail(ctx, run, entities.EventCalculationFailed, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	shortages := c.detector.Detect(run.ID, run.Horizon, result.Requirements, result.Items)

	wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	err = c.runs.ReplaceResults(wctx, run.ID, result.Requirements, shortages)
	cancel()
	if err != nil {
		log.Error(ctx, "repository replace results", logger.ErrorF(err))
		c.fail(ctx, run, entities.EventCalculationFailed, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := c.advance(ctx, run, entities.EventCalculationSucceeded, entities.EventCalculationFailed); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := &dto.RunResult{
		Run:              run,
		RequirementCount: len(result.Requirements),
		ShortageCount:    len(shortages),
		Levels:           result.Levels,
		Duration:         time.Since(started),
	}
	c.publish(ctx, events.RunCalculatedEvent, run.ID, events.RunCalculated{
		RunID:            run.ID,
		RequirementCount: res.RequirementCount,
		ShortageCount:    res.ShortageCount,
		Levels:           res.Levels,
		Duration:         res.Duration,
	})

	log.Info(ctx, "run calculated",
		logger.Int("requirements", res.RequirementCount),
		logger.Int("shortages", res.ShortageCount),
		logger.Int("levels", res.Levels),
		logger.Duration("duration", res.Duration),
	)
	return res, nil
}

func (c *Controller) GetRequirements(ctx context.Context, runID uuid.UUID) ([]entities.MRPRequirement, error) {
	const op = "mrp.controller.GetRequirements"

	if _, err := c.getRun(ctx, runID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	reqs, err := c.runs.GetRequirements(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return reqs, nil
}

func (c *Controller) GetShortages(ctx context.Context, runID uuid.UUID) ([]entities.MRPShortage, error) {
	const op = "mrp.controller.GetShortages"

	if _, err := c.getRun(ctx, runID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	shortages, err := c.runs.GetShortages(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return shortages, nil
}

// GeneratePRs turns the shortages of a calculated run into requisitions.
// Rejections leave the run status untouched.
func (c *Controller) GeneratePRs(ctx context.Context, runID uuid.UUID, actorID string) (*dto.GenerationResult, error) {
	const op = "mrp.controller.GeneratePRs"
	log := logger.With(logger.String("run_id", runID.String()), logger.String("actor_id", actorID))

	if actorID == "" {
		return nil, fmt.Errorf("%s: %w: actor id is required", op, entities.ErrValidation)
	}

	lease, err := c.lock(ctx, runID)
	if err != nil {
		log.Warn(ctx, "run lock", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer c.release(ctx, runID, lease)

	run, err := c.getRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if run.Status == entities.RunPRsGenerated {
		log.Warn(ctx, "requisitions already generated")
		return nil, fmt.Errorf("%s: %w", op, entities.ErrAlreadyGenerated)
	}
	transition, err := entities.ApplyEvent(run.Status, entities.EventStartGeneration)
	if err != nil {
		log.Warn(ctx, "generation rejected", logger.String("status", string(run.Status)))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	shortages, err := c.runs.GetShortages(rctx, run.ID)
	if err == nil {
		var existing []entities.PurchaseRequisition
		existing, err = c.ledger.GetRequisitions(rctx, run.ID)
		if err == nil && len(existing) > 0 {
			err = entities.ErrAlreadyGenerated
		}
	}
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(shortages) == 0 {
		log.Warn(ctx, "run has no shortages")
		return nil, fmt.Errorf("%s: %w", op, entities.ErrNoShortages)
	}

	if err := c.updateStatus(ctx, run, entities.StatusChange{Transition: transition, At: c.now()}); err != nil {
		log.Error(ctx, "repository update status", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	requisitions, err := c.generator.Generate(ctx, run.ID, actorID, shortages)
	if err != nil {
		log.Error(ctx, "generate requisitions", logger.ErrorF(err))
		c.fail(ctx, run, entities.EventGenerationFailed, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := c.advance(ctx, run, entities.EventGenerationSucceeded, entities.EventGenerationFailed); err != nil {
		return nil, fmt.Errorf("%s: requisitions were created but the run could not be completed: %w", op, err)
	}

	lineCount := lo.SumBy(requisitions, func(r entities.PurchaseRequisition) int { return len(r.Lines) })
	c.publish(ctx, events.RequisitionsGeneratedEvent, run.ID, events.RequisitionsGenerated{
		RunID:          run.ID,
		ActorID:        actorID,
		RequisitionIDs: lo.Map(requisitions, func(r entities.PurchaseRequisition, _ int) string { return r.ExternalID }),
		LineCount:      lineCount,
	})

	log.Info(ctx, "requisitions generated",
		logger.Int("requisitions", len(requisitions)),
		logger.Int("lines", lineCount),
	)
	return &dto.GenerationResult{Run: run, Requisitions: requisitions, LineCount: lineCount}, nil
}

// RequestCancel asks a calculating run to stop at its next level checkpoint
func (c *Controller) RequestCancel(ctx context.Context, runID uuid.UUID, actorID string) error {
	const op = "mrp.controller.RequestCancel"
	log := logger.With(logger.String("run_id", runID.String()), logger.String("actor_id", actorID))

	if actorID == "" {
		return fmt.Errorf("%s: %w: actor id is required", op, entities.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	if err := c.runs.RequestCancel(ctx, runID); err != nil {
		log.Warn(ctx, "cancel rejected", logger.ErrorF(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	c.publish(ctx, events.RunCancelRequestedEvent, runID, events.RunCancelRequested{RunID: runID, ActorID: actorID})
	log.Info(ctx, "cancel requested")
	return nil
}

// RetryRun creates a fresh draft run over the horizon of a failed run.
// The failed run itself stays failed.
func (c *Controller) RetryRun(ctx context.Context, failedRunID uuid.UUID, actorID string) (*entities.MRPRun, error) {
	const op = "mrp.controller.RetryRun"
	log := logger.With(logger.String("run_id", failedRunID.String()), logger.String("actor_id", actorID))

	failed, err := c.getRun(ctx, failedRunID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if failed.Status != entities.RunFailed {
		log.Warn(ctx, "retry rejected", logger.String("status", string(failed.Status)))
		return nil, fmt.Errorf("%s: %w: run is %s", op, entities.ErrInvalidRunState, failed.Status)
	}

	run, err := entities.NewMRPRun(failed.Horizon, actorID, c.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, entities.ErrValidation, err)
	}
	run.RetryOf = &failed.ID

	if err := c.createRun(ctx, run); err != nil {
		log.Error(ctx, "repository create run", logger.ErrorF(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info(ctx, "run retried", logger.String("new_run_id", run.ID.String()))
	return run, nil
}

// FailStaleRuns fails runs that have been calculating or generating
// requisitions for longer than olderThan and whose lock nobody holds, which
// is what a process that died mid-run leaves behind. It returns the number
// of runs failed.
func (c *Controller) FailStaleRuns(ctx context.Context, olderThan time.Duration) (int, error) {
	const op = "mrp.controller.FailStaleRuns"

	rctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	candidates, err := c.runs.ListInFlight(rctx, c.now().Add(-olderThan))
	cancel()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	failed := 0
	for _, candidate := range candidates {
		ok, err := c.failAbandoned(ctx, candidate.ID, olderThan)
		if err != nil {
			return failed, fmt.Errorf("%s: %w", op, err)
		}
		if ok {
			failed++
		}
	}
	return failed, nil
}

func (c *Controller) failAbandoned(ctx context.Context, runID uuid.UUID, olderThan time.Duration) (bool, error) {
	lease, err := c.lock(ctx, runID)
	if errors.Is(err, entities.ErrRunBusy) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer c.release(ctx, runID, lease)

	run, err := c.getRun(ctx, runID)
	if err != nil {
		return false, err
	}

	var event entities.RunEvent
	switch run.Status {
	case entities.RunCalculating:
		event = entities.EventCalculationFailed
	case entities.RunGeneratingPRs:
		event = entities.EventGenerationFailed
	default:
		return false, nil
	}
	if c.now().Sub(run.UpdatedAt) < olderThan {
		return false, nil
	}

	c.fail(ctx, run, event, fmt.Errorf("%w: %s since %s",
		entities.ErrRunAbandoned, run.Status, run.UpdatedAt.Format(time.RFC3339)))
	return run.Status == entities.RunFailed, nil
}

func (c *Controller) createRun(ctx context.Context, run *entities.MRPRun) error {
	wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	if err := c.runs.CreateRun(wctx, run); err != nil {
		return err
	}

	c.publish(ctx, events.RunCreatedEvent, run.ID, events.RunCreated{
		RunID:     run.ID,
		CreatedBy: run.CreatedBy,
		Start:     run.Horizon.Start,
		End:       run.Horizon.End,
		RetryOf:   run.RetryOf,
	})
	return nil
}

func (c *Controller) getRun(ctx context.Context, runID uuid.UUID) (*entities.MRPRun, error) {
	if runID == uuid.Nil {
		return nil, fmt.Errorf("%w: run id is required", entities.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	return c.runs.GetRun(ctx, runID)
}

func (c *Controller) updateStatus(ctx context.Context, run *entities.MRPRun, change entities.StatusChange) error {
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	if err := c.runs.UpdateStatus(ctx, run.ID, change); err != nil {
		return err
	}
	change.Apply(run)
	return nil
}

// advance persists the transition for event. A write that still fails after
// retries fails the run with failEvent so it never stays in calculating or
// generating_prs.
func (c *Controller) advance(ctx context.Context, run *entities.MRPRun, event, failEvent entities.RunEvent) error {
	transition, err := entities.ApplyEvent(run.Status, event)
	if err == nil {
		err = c.updateStatusRetrying(ctx, run, entities.StatusChange{Transition: transition, At: c.now()})
	}
	if err != nil {
		logger.Error(ctx, "advance run", logger.Stringer("event", event), logger.ErrorF(err))
		c.fail(ctx, run, failEvent, err)
		return err
	}
	return nil
}

// updateStatusRetrying retries transient write errors on a context detached
// from the caller. State conflicts are returned at once.
func (c *Controller) updateStatusRetrying(ctx context.Context, run *entities.MRPRun, change entities.StatusChange) error {
	ctx = context.WithoutCancel(ctx)
	backoff := retry.WithMaxRetries(statusWriteRetries, retry.NewExponential(c.statusRetryBase))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.updateStatus(ctx, run, change)
		if err == nil || errors.Is(err, entities.ErrInvalidRunState) || errors.Is(err, entities.ErrRunNotFound) {
			return err
		}
		logger.Warn(ctx, "status write failed", logger.String("to", string(change.To)), logger.ErrorF(err))
		return retry.RetryableError(err)
	})
}

func (c *Controller) lock(ctx context.Context, runID uuid.UUID) (repositories.Lease, error) {
	if runID == uuid.Nil {
		return nil, fmt.Errorf("%w: run id is required", entities.ErrValidation)
	}
	return c.locker.TryLock(ctx, runID)
}

func (c *Controller) release(ctx context.Context, runID uuid.UUID, lease repositories.Lease) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.writeTimeout)
	defer cancel()

	if err := lease.Release(ctx); err != nil {
		logger.Warn(ctx, "release run lock", logger.String("run_id", runID.String()), logger.ErrorF(err))
	}
}

// checkpoint stops netting between levels when the caller went away or a
// cancel was requested for the run
func (c *Controller) checkpoint(runID uuid.UUID) Checkpoint {
	return func(ctx context.Context, level int) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", entities.ErrCancelled, err)
		}

		rctx, cancel := context.WithTimeout(ctx, c.readTimeout)
		defer cancel()

		requested, err := c.runs.CancelRequested(rctx, runID)
		if err != nil {
			return fmt.Errorf("cancel flag: %w", err)
		}
		if requested {
			return fmt.Errorf("%w at level %d", entities.ErrCancelled, level)
		}
		return nil
	}
}

// fail records the failure on the run. It runs detached from ctx so a
// cancelled caller still leaves the run failed rather than calculating.
func (c *Controller) fail(ctx context.Context, run *entities.MRPRun, event entities.RunEvent, cause error) {
	ctx = context.WithoutCancel(ctx)
	from := run.Status

	transition, err := entities.ApplyEvent(from, event)
	if err != nil {
		logger.Error(ctx, "fail transition", logger.ErrorF(err))
		return
	}

	reason := entities.FailureError
	if errors.Is(cause, entities.ErrCancelled) || errors.Is(cause, context.Canceled) {
		reason = entities.FailureCancelled
	}

	change := entities.StatusChange{
		Transition:    transition,
		At:            c.now(),
		FailureReason: reason,
		LastError:     cause.Error(),
	}
	if err := c.updateStatusRetrying(ctx, run, change); err != nil {
		logger.Error(ctx, "record run failure", logger.ErrorF(err), logger.NamedError("cause", cause))
		return
	}

	c.publish(ctx, events.RunFailedEvent, run.ID, events.RunFailed{
		RunID:  run.ID,
		From:   string(from),
		Reason: string(reason),
		Error:  cause.Error(),
	})
	logger.Warn(ctx, "run failed", logger.String("reason", string(reason)), logger.ErrorF(cause))
}

func (c *Controller) publish(ctx context.Context, eventType string, runID uuid.UUID, data interface{}) {
	if err := c.publisher.Publish(ctx, events.NewEvent(eventType, events.RunStream(runID), data)); err != nil {
		logger.Warn(ctx, "publish event", logger.String("type", eventType), logger.ErrorF(err))
	}
}
