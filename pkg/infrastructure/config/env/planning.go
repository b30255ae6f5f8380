package envconfig

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type planningEnv struct {
	PeriodDays            int           `env:"MRP_PERIOD_DAYS" envDefault:"7"`
	MaxBOMDepth           int           `env:"MRP_MAX_BOM_DEPTH" envDefault:"64"`
	SnapshotRetryAttempts uint64        `env:"MRP_SNAPSHOT_RETRY_ATTEMPTS" envDefault:"3"`
	SnapshotRetryBase     time.Duration `env:"MRP_SNAPSHOT_RETRY_BASE" envDefault:"200ms"`
	ShortageScope         string        `env:"MRP_SHORTAGE_SCOPE" envDefault:"lead_time"`
	StaleRunAfter         time.Duration `env:"MRP_STALE_RUN_AFTER" envDefault:"15m"`
	StaleSweepInterval    time.Duration `env:"MRP_STALE_SWEEP_INTERVAL" envDefault:"1m"`
}

type planning struct {
	raw planningEnv
}

func NewPlanningConfig() (*planning, error) {
	var raw planningEnv
	if err := env.Parse(&raw); err != nil {
		return nil, err
	}
	if raw.PeriodDays < 1 {
		return nil, fmt.Errorf("MRP_PERIOD_DAYS must be positive, got %d", raw.PeriodDays)
	}
	if raw.MaxBOMDepth < 1 {
		return nil, fmt.Errorf("MRP_MAX_BOM_DEPTH must be positive, got %d", raw.MaxBOMDepth)
	}
	if raw.ShortageScope != "lead_time" && raw.ShortageScope != "horizon" {
		return nil, fmt.Errorf("unsupported MRP_SHORTAGE_SCOPE %q", raw.ShortageScope)
	}
	if raw.StaleRunAfter <= 0 {
		return nil, fmt.Errorf("MRP_STALE_RUN_AFTER must be positive, got %s", raw.StaleRunAfter)
	}
	return &planning{raw: raw}, nil
}

func (cfg *planning) PeriodDays() int                   { return cfg.raw.PeriodDays }
func (cfg *planning) MaxBOMDepth() int                  { return cfg.raw.MaxBOMDepth }
func (cfg *planning) SnapshotRetryAttempts() uint64     { return cfg.raw.SnapshotRetryAttempts }
func (cfg *planning) SnapshotRetryBase() time.Duration  { return cfg.raw.SnapshotRetryBase }
func (cfg *planning) ShortageScope() string             { return cfg.raw.ShortageScope }
func (cfg *planning) StaleRunAfter() time.Duration      { return cfg.raw.StaleRunAfter }
func (cfg *planning) StaleSweepInterval() time.Duration { return cfg.raw.StaleSweepInterval }
