package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/vsinha/mrp-planner/pkg/app"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/logger"
)

func main() {
	ctx, quit := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT, syscall.SIGTERM,
	)
	defer quit()

	a, err := app.New(ctx)
	if err != nil {
		logger.Error(ctx,
			"failed to create an application",
			logger.ErrorF(err),
		)
		return
	}

	if err := a.Run(ctx); err != nil {
		logger.Error(ctx, "mrp server error", logger.ErrorF(err))
	}
}
