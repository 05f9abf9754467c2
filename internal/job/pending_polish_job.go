package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const defaultPendingBatch = 10

type PendingProcessor interface {
	ProcessPending(ctx context.Context, limit uint) (int, error)
}

// PendingPolishJob retries the rewrite for chapters that have a transcript but
// are still pending, oldest first.
type PendingPolishJob struct {
	chapters PendingProcessor
	batch    int
}

func NewPendingPolishJob(chapters PendingProcessor, batch int) *PendingPolishJob {
	if batch <= 0 {
		batch = defaultPendingBatch
	}
	return &PendingPolishJob{chapters: chapters, batch: batch}
}

func (j *PendingPolishJob) Name() string {
	return "pending_polish"
}

func (j *PendingPolishJob) Run(ctx context.Context) error {
	if j.chapters == nil {
		return nil
	}
	n, err := j.chapters.ProcessPending(ctx, uint(j.batch))
	if err != nil {
		return err
	}
	if n > 0 {
		logutil.GetLogger(ctx).Info("pending chapters polished", zap.Int("count", n))
	}
	return nil
}
