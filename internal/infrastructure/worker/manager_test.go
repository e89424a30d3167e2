package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWorker struct {
	name     string
	startErr error
	order    *[]string
	ctx      context.Context
}

func (w *fakeWorker) Start(ctx context.Context) error {
	w.ctx = ctx
	*w.order = append(*w.order, "start:"+w.name)
	return w.startErr
}

func (w *fakeWorker) Stop() error {
	*w.order = append(*w.order, "stop:"+w.name)
	return nil
}

func (w *fakeWorker) Name() string { return w.name }

func TestWorkerManager_Lifecycle(t *testing.T) {
	var order []string
	first := &fakeWorker{name: "first", order: &order}
	second := &fakeWorker{name: "second", order: &order, startErr: errors.New("port busy")}

	m := NewWorkerManager(zap.NewNop())
	m.Register(first)
	m.Register(second)
	assert.Equal(t, []string{"first", "second"}, m.Names())

	err := m.StartAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second: port busy")
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.ErrorIs(t, first.ctx.Err(), context.Canceled)

	assert.Equal(t, []string{"start:first", "start:second", "stop:second", "stop:first"}, order)

	// stopping again is a no-op
	assert.NoError(t, m.StopAll())
}
