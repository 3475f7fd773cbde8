package worker

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xunop/bookworm/internal/lockfile"
	"github.com/Xunop/bookworm/internal/log"
	"github.com/Xunop/bookworm/internal/model"
)

// ErrAlreadyRunning is returned when another reindex holds the job lock.
var ErrAlreadyRunning = errors.New("reindex is already running")

type ArchiveLister interface {
	ListArchives(find *model.FindArchive) ([]*model.Archive, error)
}

// ReindexJob indexes every exploded archive that is not indexed yet.
type ReindexJob struct {
	LockFile string
	Store    ArchiveLister
	Indexer  Indexer
	Size     int
}

type Report struct {
	Indexed int
	Skipped int
	Failed  int
	Jobs    model.JobList
}

// Run holds the job lock for its whole duration. One archive failing does
// not stop the others.
func (j *ReindexJob) Run(ctx context.Context) (*Report, error) {
	lock, err := lockfile.TryLock(j.LockFile)
	if err != nil {
		if errors.Is(err, lockfile.ErrLocked) {
			log.Warn("Reindex already running", zap.String("lock_file", j.LockFile))
			return nil, errors.Wrap(ErrAlreadyRunning, j.LockFile)
		}
		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Error("Failed to release reindex lock", zap.String("lock_file", j.LockFile), zap.Error(err))
		}
	}()

	no := false
	archives, err := j.Store.ListArchives(&model.FindArchive{Indexed: &no})
	if err != nil {
		return nil, errors.Wrap(err, "list unindexed archives")
	}

	pool := NewIndexPool(ctx, j.Indexer, j.Size)
	go func() {
		defer pool.Close()
		for i, archive := range archives {
			if !archive.Exploded {
				log.Info("Skipping archive that was never exploded", zap.Int("archive_id", archive.ID))
				continue
			}
			pool.Push(model.Job{
				ID:        i + 1,
				ArchiveID: archive.ID,
				Owner:     archive.Owner,
				Archive:   archive,
				Status:    model.JobStatusPending,
			})
		}
	}()

	report := &Report{}
	for job := range pool.Results() {
		report.Jobs = append(report.Jobs, job)
	}
	report.Indexed = report.Jobs.Count(model.JobStatusDone)
	report.Skipped = report.Jobs.Count(model.JobStatusSkipped)
	report.Failed = report.Jobs.Count(model.JobStatusFailed)

	log.Info("Reindex finished",
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}
