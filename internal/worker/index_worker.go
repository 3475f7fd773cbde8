package worker

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xunop/bookworm/internal/log"
	"github.com/Xunop/bookworm/internal/model"
	"github.com/Xunop/bookworm/internal/search"
)

// Indexer is the part of the search indexer the workers call.
type Indexer interface {
	IndexEpub(ctx context.Context, usernames []string, archive *model.Archive, single *model.ContentRecord) error
}

var (
	_ WorkPool = (*IndexPool)(nil)
	_ Worker   = (*IndexWorker)(nil)
)

// IndexPool runs one goroutine per queue. Jobs of the same owner always
// land on the same queue so two workers never compete for one user's
// index.
type IndexPool struct {
	queues  []chan model.Job
	results chan model.Job
	wg      sync.WaitGroup
}

func NewIndexPool(ctx context.Context, indexer Indexer, size int) *IndexPool {
	if size < 1 {
		size = 1
	}
	pool := &IndexPool{
		queues:  make([]chan model.Job, size),
		results: make(chan model.Job, size),
	}

	for i := 0; i < size; i++ {
		pool.queues[i] = make(chan model.Job)
		worker := &IndexWorker{id: i, ctx: ctx, indexer: indexer, results: pool.results}
		pool.wg.Add(1)
		go func(c <-chan model.Job) {
			defer pool.wg.Done()
			worker.Run(c)
		}(pool.queues[i])
	}
	go func() {
		pool.wg.Wait()
		close(pool.results)
	}()

	return pool
}

// Implement WorkPool interface
func (p *IndexPool) Push(job model.Job) {
	h := fnv.New32a()
	h.Write([]byte(job.Owner))
	p.queues[h.Sum32()%uint32(len(p.queues))] <- job
}

// Close stops accepting jobs. Results is closed once every queued job is
// done.
func (p *IndexPool) Close() {
	for _, q := range p.queues {
		close(q)
	}
}

func (p *IndexPool) Results() <-chan model.Job {
	return p.results
}

type IndexWorker struct {
	id      int
	ctx     context.Context
	indexer Indexer
	results chan<- model.Job
}

// Run indexes archives until c is closed. A locked index database skips
// the archive; it stays unindexed and is picked up by the next run.
func (w *IndexWorker) Run(c <-chan model.Job) {
	log.Debug("IndexWorker is running", zap.Int("worker_id", w.id))

	for job := range c {
		log.Debug("Job received by worker",
			zap.Int("worker_id", w.id),
			zap.Int("archive_id", job.ArchiveID))

		job.Status = model.JobStatusRunning
		err := w.ctx.Err()
		if err == nil {
			err = w.indexer.IndexEpub(w.ctx, nil, job.Archive, nil)
		}

		switch {
		case err == nil:
			job.Status = model.JobStatusDone
		case errors.Is(err, search.ErrDatabaseLocked), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			log.Warn("Skipping archive, will retry on the next run",
				zap.Int("archive_id", job.ArchiveID), zap.String("owner", job.Owner), zap.Error(err))
			job.Status = model.JobStatusSkipped
			job.Err = err
		default:
			log.Error("Failed to index archive",
				zap.Int("archive_id", job.ArchiveID), zap.String("owner", job.Owner), zap.Error(err))
			job.Status = model.JobStatusFailed
			job.Err = err
		}
		w.results <- job
	}
}
