package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vsinha/mrp-planner/pkg/application/services/mrp"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/events"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/lock"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/repositories/memory"
	infratest "github.com/vsinha/mrp-planner/pkg/infrastructure/testing"
	"github.com/vsinha/mrp-planner/pkg/interfaces/cli/output"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "MRP failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	scenario := infratest.BuildAerospaceScenario()
	runs := memory.NewRunRepository()
	sink := memory.NewRequisitionSink()

	ctrl := mrp.NewController(mrp.Dependencies{
		BOM:       scenario.BOM,
		Items:     scenario.Items,
		Snapshots: scenario.Snapshots,
		Runs:      runs,
		Ledger:    runs,
		Locker:    lock.NewMemoryLocker(),
		Sink:      sink,
		Publisher: events.NewInMemoryEventStore(),
	}, mrp.Config{})

	fmt.Println("Running MRP for two Saturn V stacks due 2025-09-01...")

	run, err := ctrl.CreateRun(ctx, scenario.Horizon, "example")
	if err != nil {
		return err
	}
	result, err := ctrl.Calculate(ctx, run.ID, "example")
	if err != nil {
		return err
	}

	report := &output.Report{Result: result}
	if report.Requirements, err = ctrl.GetRequirements(ctx, run.ID); err != nil {
		return err
	}
	if report.Shortages, err = ctrl.GetShortages(ctx, run.ID); err != nil {
		return err
	}

	gen, err := ctrl.GeneratePRs(ctx, run.ID, "example")
	if err != nil {
		return err
	}
	report.Result.Run = gen.Run
	report.Requisitions = gen.Requisitions

	if err := output.Generate(os.Stdout, report, output.Config{Format: "text"}); err != nil {
		return err
	}

	fmt.Printf("%d requisitions sent to the sink\n", len(sink.Created()))
	return nil
}
