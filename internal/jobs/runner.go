package jobs

import (
	"context"
	"log"
	"time"
)

// Job is one periodic background process. Run handles a full cycle;
// failures inside a cycle are isolated per entity by the job itself and
// never terminate the loop.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// RunOnInterval executes the job once immediately, then once per tick,
// until the context is cancelled. Cycles never overlap: the next tick
// waits for the current cycle to return.
func RunOnInterval(ctx context.Context, job Job, interval time.Duration) {
	run := func() {
		start := time.Now()
		if err := job.Run(ctx); err != nil {
			log.Printf("[%s] cycle failed: %v", job.Name(), err)
			return
		}
		log.Printf("[%s] cycle finished in %s", job.Name(), time.Since(start).Round(time.Millisecond))
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			run()
		case <-ctx.Done():
			log.Printf("[%s] stopping", job.Name())
			return
		}
	}
}
