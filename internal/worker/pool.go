package worker

import (
	"github.com/Xunop/bookworm/internal/model"
)

type WorkPool interface {
	Push(job model.Job)
}
