package ingest

import (
	"context"
	"sync"

	"github.com/simon987/irarchives-go/internal/bus"
	"github.com/simon987/irarchives-go/internal/config"
	"github.com/simon987/irarchives-go/internal/logging"
	"github.com/simon987/irarchives-go/internal/store"
)

// Pool runs a fixed number of workers, each with its own Pipeline (and
// therefore its own private Fetcher), consuming raw messages from a
// single bus.Consumer and hot-rebinding subreddit subscriptions on
// file change (§4.9).
type Pool struct {
	size     int
	db       *store.DB
	cfg      config.Config
	consumer *bus.Consumer
}

// NewPool builds a worker pool of cfg.WorkerCount workers (falling
// back to 30 if unset, §4.9) over consumer.
func NewPool(consumer *bus.Consumer, db *store.DB, cfg config.Config) *Pool {
	size := cfg.WorkerCount
	if size <= 0 {
		size = 30
	}
	return &Pool{size: size, db: db, cfg: cfg, consumer: consumer}
}

// Run binds the consumer to subreddits, starts the worker pool, and
// blocks until ctx is cancelled. It also starts a watcher on
// subredditListPath so a file edit rebinds the queue without a
// process restart.
func (p *Pool) Run(ctx context.Context, subredditListPath string) error {
	log := logging.For("ingest.pool")

	subs, err := bus.LoadSubreddits(subredditListPath)
	if err != nil {
		return err
	}
	if err := p.consumer.Rebind(subs, nil); err != nil {
		return err
	}
	log.WithField("count", len(subs)).Info("bound subreddits")

	var rebindMu sync.Mutex
	current := subs
	if err := bus.WatchSubreddits(ctx, subredditListPath, func(next []string) {
		rebindMu.Lock()
		defer rebindMu.Unlock()
		if err := p.consumer.Rebind(next, current); err != nil {
			log.WithError(err).Warn("rebind failed")
			return
		}
		current = next
		log.WithField("count", len(next)).Info("rebound subreddits")
	}); err != nil {
		log.WithError(err).Warn("subreddit watcher unavailable, running with static bindings")
	}

	deliveries, err := p.consumer.Consume()
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		pipeline, err := NewPipeline(p.db, p.cfg)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func(workerID int, pl *Pipeline) {
			defer wg.Done()
			workerLog := logging.For("ingest.worker").WithField("worker", workerID)
			for {
				select {
				case <-ctx.Done():
					return
				case raw, ok := <-deliveries:
					if !ok {
						return
					}
					if err := pl.ProcessEnvelope(ctx, raw); err != nil {
						workerLog.WithError(err).Warn("process envelope failed")
					}
				}
			}
		}(i, pipeline)
	}

	wg.Wait()
	return nil
}
