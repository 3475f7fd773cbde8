package model //import "github.com/Xunop/bookworm/internal/model"

const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusSkipped = "skipped"
	JobStatusFailed  = "failed"
)

// Job is one archive queued for indexing.
type Job struct {
	ID        int
	ArchiveID int
	Owner     string
	Archive   *Archive
	Status    string
	Err       error
}

type JobList []Job

func (j JobList) Len() int {
	return len(j)
}

// Count returns how many jobs ended with status.
func (j JobList) Count(status string) int {
	n := 0
	for _, job := range j {
		if job.Status == status {
			n++
		}
	}
	return n
}
