package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vsinha/mrp-planner/pkg/infrastructure/logger"
	"github.com/vsinha/mrp-planner/pkg/interfaces/cli/commands"
)

func main() {
	var (
		scenarioDir = flag.String("scenario", "", "Path to scenario directory containing CSV files")
		sqlitePath  = flag.String("sqlite", "", "SQLite scenario file; with -scenario the CSV data is saved into it")
		start       = flag.String("start", "", "Horizon start date (YYYY-MM-DD)")
		end         = flag.String("end", "", "Horizon end date (YYYY-MM-DD, default start + 26 weeks)")
		periodDays  = flag.Int("period-days", 7, "Length of one planning bucket in days")
		maxDepth    = flag.Int("max-depth", 0, "BOM depth bound (0 uses the default)")
		scope       = flag.String("shortage-scope", "lead_time", "Shortage scope: lead_time or horizon")
		generatePRs = flag.Bool("requisitions", false, "Generate purchase requisitions for the shortages")
		outputDir   = flag.String("output", "", "Output directory for results (optional)")
		format      = flag.String("format", "text", "Output format: text, json, csv")
		verbose     = flag.Bool("verbose", false, "Enable verbose output")

		generate  = flag.Bool("generate", false, "Generate a random scenario into -output instead of planning")
		items     = flag.Int("items", 100, "Generate: number of items")
		genDepth  = flag.Int("depth", 5, "Generate: maximum BOM depth")
		demands   = flag.Int("demands", 10, "Generate: number of demand lines")
		inventory = flag.Float64("inventory", 0.5, "Generate: supply multiplier")
		seed      = flag.Uint64("seed", 0, "Generate: random seed (0 picks one)")
	)
	flag.Parse()

	if *verbose {
		if err := logger.Init("debug", false); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	if *generate {
		err = commands.NewGenerateCommand(commands.GenerateConfig{
			Items:     *items,
			MaxDepth:  *genDepth,
			Demands:   *demands,
			Inventory: *inventory,
			OutputDir: *outputDir,
			Seed:      *seed,
			Verbose:   *verbose,
		}).Execute(ctx)
	} else {
		err = commands.NewMRPCommand(commands.Config{
			ScenarioDir: *scenarioDir,
			SQLitePath:  *sqlitePath,
			Start:       *start,
			End:         *end,
			PeriodDays:  *periodDays,
			MaxBOMDepth: *maxDepth,
			Scope:       *scope,
			GeneratePRs: *generatePRs,
			OutputDir:   *outputDir,
			Format:      *format,
			Verbose:     *verbose,
		}).Execute(ctx)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
