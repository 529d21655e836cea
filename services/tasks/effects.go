package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coursebook/models"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TypeBookingEffect is the asynq task type carrying one post-commit effect.
const TypeBookingEffect = "booking:effect"

// EffectHandler runs a single effect. The notification service implements it.
type EffectHandler interface {
	Handle(ctx context.Context, effect models.Effect) error
}

// NewEffectTask wraps an effect in an asynq task.
func NewEffectTask(effect models.Effect) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(effect)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeBookingEffect, b)
	opts := []asynq.Option{
		asynq.MaxRetry(5),
		asynq.Timeout(30 * time.Second),
		asynq.Queue("default"),
	}
	return task, opts, nil
}

// ParseEffectTask decodes the payload written by NewEffectTask.
func ParseEffectTask(task *asynq.Task) (models.Effect, error) {
	var effect models.Effect
	if err := json.Unmarshal(task.Payload(), &effect); err != nil {
		return models.Effect{}, fmt.Errorf("invalid effect payload: %w", err)
	}
	return effect, nil
}

// Enqueuer is the part of *asynq.Client the queue dispatcher uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueDispatcher hands effects to the asynq worker.
type QueueDispatcher struct {
	client Enqueuer
	logger *zap.Logger
}

func NewQueueDispatcher(client Enqueuer, logger *zap.Logger) *QueueDispatcher {
	return &QueueDispatcher{client: client, logger: logger}
}

// Dispatch enqueues every effect. Enqueue failures are logged and dropped.
func (d *QueueDispatcher) Dispatch(ctx context.Context, effects ...models.Effect) {
	ctx = context.WithoutCancel(ctx)
	for _, effect := range effects {
		task, opts, err := NewEffectTask(effect)
		if err != nil {
			d.logger.Error("Failed to build effect task", zap.Error(err))
			continue
		}
		info, err := d.client.EnqueueContext(ctx, task, opts...)
		if err != nil {
			d.logger.Error("Failed to enqueue effect",
				zap.String("kind", string(effect.Kind)),
				zap.String("recipient", effect.Recipient),
				zap.Error(err))
			continue
		}
		d.logger.Debug("Effect enqueued", zap.String("taskId", info.ID), zap.String("type", effect.Type))
	}
}

// InlineDispatcher runs effects in the calling goroutine.
type InlineDispatcher struct {
	handler EffectHandler
	logger  *zap.Logger
}

func NewInlineDispatcher(handler EffectHandler, logger *zap.Logger) *InlineDispatcher {
	return &InlineDispatcher{handler: handler, logger: logger}
}

// Dispatch runs every effect, logging and swallowing failures.
func (d *InlineDispatcher) Dispatch(ctx context.Context, effects ...models.Effect) {
	ctx = context.WithoutCancel(ctx)
	for _, effect := range effects {
		if err := d.handler.Handle(ctx, effect); err != nil {
			d.logger.Warn("Side effect failed",
				zap.String("kind", string(effect.Kind)),
				zap.String("type", effect.Type),
				zap.String("recipient", effect.Recipient),
				zap.Error(err))
		}
	}
}
