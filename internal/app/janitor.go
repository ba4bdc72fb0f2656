package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shrimpsizemoose/trekker/logger"
)

// StartJanitor schedules the orphan-table sweep if the config enables it.
// Orphaned prefixed tables appear when an import is deleted without a
// teardown or a deployment crashes mid-way; the sweep diffs live tables
// against the recorded active prefixes and drops the leftovers.
func StartJanitor(service *Service) (*cron.Cron, error) {
	if !service.Config.Janitor.Enabled {
		return nil, nil
	}
	schedule := service.Config.Janitor.Schedule
	if schedule == "" {
		schedule = "@hourly"
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { sweepOrphans(service) }); err != nil {
		return nil, fmt.Errorf("failed to schedule janitor: %w", err)
	}
	c.Start()
	logger.Info.Printf("Janitor scheduled: %s", schedule)
	return c, nil
}

func sweepOrphans(service *Service) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	prefixes, err := service.Store.ListActivePrefixes()
	if err != nil {
		logger.Error.Printf("Janitor: failed to list active prefixes: %v", err)
		return
	}

	dropped, err := service.Deployer.DropOrphans(ctx, prefixes)
	if err != nil {
		logger.Error.Printf("Janitor: orphan sweep failed: %v", err)
		return
	}
	if len(dropped) > 0 {
		logger.Info.Printf("Janitor: dropped %d orphan tables", len(dropped))
	}
}
