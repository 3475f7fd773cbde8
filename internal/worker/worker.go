package worker // import "github.com/Xunop/bookworm/internal/worker"

import (
	"github.com/Xunop/bookworm/internal/model"
)

type Worker interface {
	Run(c <-chan model.Job)
}
