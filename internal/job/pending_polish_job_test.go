package job

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	limit uint
	n     int
	err   error
}

func (f *fakeProcessor) ProcessPending(ctx context.Context, limit uint) (int, error) {
	f.limit = limit
	return f.n, f.err
}

func TestPendingPolishJob(t *testing.T) {
	p := &fakeProcessor{n: 2}
	j := NewPendingPolishJob(p, 0)
	require.Equal(t, "pending_polish", j.Name())
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, uint(defaultPendingBatch), p.limit)

	p.err = errors.New("db down")
	require.Error(t, NewPendingPolishJob(p, 3).Run(context.Background()))
	require.Equal(t, uint(3), p.limit)

	require.NoError(t, NewPendingPolishJob(nil, 1).Run(context.Background()))
}
