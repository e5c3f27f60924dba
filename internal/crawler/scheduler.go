package crawler

import (
	"context"
	"time"

	"campus-rag-go/pkg/log"
)

const defaultIntervalHours = 6

// Scheduler runs the crawler on a fixed interval until stopped.
type Scheduler struct {
	crawler  *Crawler
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewScheduler creates a scheduler for the given crawler.
func NewScheduler(c *Crawler, intervalHours int) *Scheduler {
	if intervalHours <= 0 {
		intervalHours = defaultIntervalHours
	}
	return &Scheduler{
		crawler:  c,
		interval: time.Duration(intervalHours) * time.Hour,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the periodic crawl loop. The first run happens immediately
// so a fresh deployment does not wait a full interval for content.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		log.Infof("[crawler] scheduler started, interval %s", s.interval)

		s.crawler.RunOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.crawler.RunOnce(ctx)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the loop and waits for the current run to unwind.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
	log.Info("[crawler] scheduler stopped")
}
