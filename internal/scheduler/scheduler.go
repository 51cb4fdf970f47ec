package scheduler

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

type Task func(ctx context.Context) error

// Every runs task on each tick until ctx ends. It blocks; start it in a
// goroutine. A tick that fires while the previous run is still going is
// skipped by the ticker.
func Every(ctx context.Context, interval time.Duration, name string, task Task) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			runOnce(ctx, name, task)
		}
	}
}

func runOnce(ctx context.Context, name string, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("[%s] panic: %v", name, rec)
		}
	}()
	if err := task(ctx); err != nil {
		log.Errorf("[%s] error: %v", name, err)
	}
}
