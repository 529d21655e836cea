package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"coursebook/models"
	"coursebook/services/tasks"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHandler struct {
	got []models.Effect
	err error
}

func (h *recordingHandler) Handle(ctx context.Context, effect models.Effect) error {
	h.got = append(h.got, effect)
	return h.err
}

func TestHandleEffectTask(t *testing.T) {
	h := &recordingHandler{}
	handle := handleEffectTask(h, zap.NewNop())

	effect := models.Effect{Kind: models.EffectNotify, Recipient: "s-1", Type: "enrollment_confirmed", Message: "You are in"}
	task, _, err := tasks.NewEffectTask(effect)
	require.NoError(t, err)

	require.NoError(t, handle(context.Background(), task))
	require.Len(t, h.got, 1)
	assert.Equal(t, effect, h.got[0])
}

func TestHandleEffectTaskRetriesHandlerFailure(t *testing.T) {
	h := &recordingHandler{err: errors.New("sink down")}
	handle := handleEffectTask(h, zap.NewNop())

	task, _, err := tasks.NewEffectTask(models.Effect{Kind: models.EffectNotify, Recipient: "s-1"})
	require.NoError(t, err)

	err = handle(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleEffectTaskSkipsMalformedPayload(t *testing.T) {
	h := &recordingHandler{}
	handle := handleEffectTask(h, zap.NewNop())

	err := handle(context.Background(), asynq.NewTask(tasks.TypeBookingEffect, []byte("{not json")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, h.got)
}

type fakeReconciler struct {
	calls     int
	olderThan time.Duration
	n         int
	err       error
}

func (f *fakeReconciler) ReconcilePendingRefunds(ctx context.Context, olderThan time.Duration) (int, error) {
	f.calls++
	f.olderThan = olderThan
	_, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return 0, errors.New("sweep must be bounded")
	}
	return f.n, f.err
}

func TestRunReconcile(t *testing.T) {
	f := &fakeReconciler{n: 2}
	runReconcile(context.Background(), f, 10*time.Minute, zap.NewNop())
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, 10*time.Minute, f.olderThan)

	f.err = errors.New("gateway down")
	runReconcile(context.Background(), f, time.Minute, zap.NewNop())
	assert.Equal(t, 2, f.calls)
}

func TestStartRefundReconcilerRejectsBadSchedule(t *testing.T) {
	_, err := StartRefundReconciler("every tuesday", &fakeReconciler{}, time.Minute, zap.NewNop())
	require.Error(t, err)
}

func TestStartRefundReconciler(t *testing.T) {
	c, err := StartRefundReconciler("*/5 * * * *", &fakeReconciler{}, time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer c.Stop()
	assert.Len(t, c.Entries(), 1)
}
