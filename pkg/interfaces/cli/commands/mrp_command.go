package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vsinha/mrp-planner/pkg/application/services/mrp"
	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/events"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/lock"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/repositories/sqlite"
	"github.com/vsinha/mrp-planner/pkg/interfaces/cli/output"
)

const cliActor = "cli"

// Config holds configuration for the MRP command
type Config struct {
	ScenarioDir string // CSV scenario directory
	SQLitePath  string // read master data from, or with ScenarioDir save it to, this SQLite file
	Start       string
	End         string
	PeriodDays  int
	MaxBOMDepth int
	Scope       string
	GeneratePRs bool
	OutputDir   string
	Format      string
	Verbose     bool
}

// MRPCommand loads a scenario, calculates one run and prints the result
type MRPCommand struct {
	config Config
	out    io.Writer
}

// NewMRPCommand creates a new MRP command with the given configuration
func NewMRPCommand(config Config) *MRPCommand {
	if config.PeriodDays == 0 {
		config.PeriodDays = 7
	}
	if config.Format == "" {
		config.Format = "text"
	}
	return &MRPCommand{config: config, out: os.Stdout}
}

// sources is the master data and snapshot side of a planning run
type sources struct {
	bom       repositories.BOMResolver
	items     repositories.ItemRepository
	snapshots repositories.SnapshotProvider
	close     func() error
}

// Execute runs the MRP command
func (c *MRPCommand) Execute(ctx context.Context) error {
	if c.config.ScenarioDir == "" && c.config.SQLitePath == "" {
		return fmt.Errorf("validation error: must specify -scenario directory or -sqlite file")
	}

	horizon, err := c.horizon()
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	scope, err := mrp.ParseShortageScope(c.config.Scope)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	src, err := c.openSources(ctx)
	if err != nil {
		return err
	}
	defer src.close()

	runs := memory.NewRunRepository()
	eventLog := events.NewInMemoryEventStore()
	ctrl := mrp.NewController(mrp.Dependencies{
		BOM:       src.bom,
		Items:     src.items,
		Snapshots: src.snapshots,
		Runs:      runs,
		Ledger:    runs,
		Locker:    lock.NewMemoryLocker(),
		Sink:      memory.NewRequisitionSink(),
		Publisher: eventLog,
	}, mrp.Config{MaxBOMDepth: c.config.MaxBOMDepth, ShortageScope: scope})

	if c.config.Verbose {
		fmt.Fprintln(c.out, "Run events:")
		trace := &eventTrace{out: c.out}
		if err := eventLog.Subscribe(events.RunEventTypes, trace); err != nil {
			return fmt.Errorf("error subscribing to run events: %w", err)
		}
		defer eventLog.Unsubscribe(trace)
	}

	run, err := ctrl.CreateRun(ctx, horizon, cliActor)
	if err != nil {
		return fmt.Errorf("error creating run: %w", err)
	}

	if c.config.Verbose {
		fmt.Fprintf(c.out, "Calculating run %s over %s\n", run.ID, horizon)
	}
	result, err := ctrl.Calculate(ctx, run.ID, cliActor)
	if err != nil {
		return fmt.Errorf("error calculating run: %w", err)
	}

	report := &output.Report{Result: result}
	if report.Requirements, err = ctrl.GetRequirements(ctx, run.ID); err != nil {
		return err
	}
	if report.Shortages, err = ctrl.GetShortages(ctx, run.ID); err != nil {
		return err
	}

	if c.config.GeneratePRs {
		gen, err := ctrl.GeneratePRs(ctx, run.ID, cliActor)
		switch {
		case errors.Is(err, entities.ErrNoShortages):
			if c.config.Verbose {
				fmt.Fprintln(c.out, "No shortages, no requisitions generated")
			}
		case err != nil:
			return fmt.Errorf("error generating requisitions: %w", err)
		default:
			report.Result.Run = gen.Run
			report.Requisitions = gen.Requisitions
		}
	}

	if c.config.Verbose {
		stats := memory.GetMemoryStats()
		fmt.Fprintf(c.out, "Memory: %s allocated, %d heap objects\n\n",
			memory.FormatBytes(stats.AllocBytes), stats.HeapObjects)
	}

	return output.Generate(c.out, report, output.Config{
		Format:    c.config.Format,
		OutputDir: c.config.OutputDir,
		Verbose:   c.config.Verbose,
	})
}

func (c *MRPCommand) horizon() (entities.Horizon, error) {
	if c.config.Start == "" {
		return entities.Horizon{}, fmt.Errorf("-start is required")
	}
	start, err := time.Parse(time.DateOnly, c.config.Start)
	if err != nil {
		return entities.Horizon{}, fmt.Errorf("invalid start date %q", c.config.Start)
	}

	end := start.AddDate(0, 0, 26*7)
	if c.config.End != "" {
		if end, err = time.Parse(time.DateOnly, c.config.End); err != nil {
			return entities.Horizon{}, fmt.Errorf("invalid end date %q", c.config.End)
		}
	}
	return entities.NewHorizon(start, end, c.config.PeriodDays)
}

// openSources reads the CSV scenario into memory, or into SQLite when both
// inputs are given, or opens an existing SQLite file on its own.
func (c *MRPCommand) openSources(ctx context.Context) (*sources, error) {
	var scenario *csv.Scenario
	if c.config.ScenarioDir != "" {
		var err error
		if scenario, err = csv.NewLoader().LoadScenario(c.config.ScenarioDir); err != nil {
			return nil, fmt.Errorf("error loading scenario: %w", err)
		}
		if c.config.Verbose {
			fmt.Fprintf(c.out, "Loaded %d items, %d BOM edges, %d supply, %d demand\n",
				len(scenario.Items), len(scenario.Edges), len(scenario.Supply), len(scenario.Demand))
		}
	}

	if c.config.SQLitePath == "" {
		bom := memory.NewBOMRepository(len(scenario.Edges))
		items := memory.NewItemRepository(len(scenario.Items))
		snapshots := memory.NewSnapshotStore()
		if err := scenario.Store(ctx, items, bom, snapshots); err != nil {
			return nil, err
		}
		return &sources{bom: bom, items: items, snapshots: snapshots, close: func() error { return nil }}, nil
	}

	store, err := sqlite.Open(c.config.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite store: %w", err)
	}
	if scenario != nil {
		if err := scenario.Store(ctx, store, store, store); err != nil {
			store.Close()
			return nil, err
		}
		if c.config.Verbose {
			fmt.Fprintf(c.out, "Scenario saved to %s\n", c.config.SQLitePath)
		}
	}
	return &sources{bom: store, items: store, snapshots: store, close: store.Close}, nil
}

// eventTrace prints run lifecycle events as the controller publishes them
type eventTrace struct {
	out io.Writer
}

func (t *eventTrace) CanHandle(string) bool { return true }

func (t *eventTrace) Handle(e events.Event) error {
	_, err := fmt.Fprintf(t.out, "  %s  %s\n", e.Timestamp().Format(time.RFC3339), e.Type())
	return err
}
