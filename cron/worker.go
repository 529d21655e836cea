package cron

import (
	"context"
	"fmt"
	"time"

	"coursebook/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// EffectWorker consumes booking side effects from the asynq queue.
type EffectWorker struct {
	srv     *asynq.Server
	mux     *asynq.ServeMux
	logger  *zap.Logger
	retries int
}

// NewEffectWorker builds the worker; call Start to begin consuming.
func NewEffectWorker(redisOpts asynq.RedisClientOpt, handler tasks.EffectHandler, logger *zap.Logger) *EffectWorker {
	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
			Logger: logger.Named("asynq").Sugar(),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeBookingEffect, handleEffectTask(handler, logger))

	return &EffectWorker{srv: srv, mux: mux, logger: logger, retries: 5}
}

// Start runs the worker in the background, retrying the connection with a
// linear backoff before giving up.
func (w *EffectWorker) Start() {
	go func() {
		w.logger.Info("Starting effect worker")
		for attempt := 1; attempt <= w.retries; attempt++ {
			err := w.srv.Start(w.mux)
			if err == nil {
				return
			}
			w.logger.Warn("Effect worker failed to start",
				zap.Int("attempt", attempt),
				zap.Int("maxAttempts", w.retries),
				zap.Error(err))
			if attempt == w.retries {
				w.logger.Error("Effect worker gave up; effects stay queued until restart")
				return
			}
			time.Sleep(time.Duration(attempt*2) * time.Second)
		}
	}()
}

// Shutdown waits for in-flight tasks and stops the worker.
func (w *EffectWorker) Shutdown() {
	w.srv.Shutdown()
}

func handleEffectTask(handler tasks.EffectHandler, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		effect, err := tasks.ParseEffectTask(task)
		if err != nil {
			logger.Error("Dropping malformed effect task", zap.Error(err))
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}

		if err := handler.Handle(ctx, effect); err != nil {
			logger.Warn("Effect failed, will retry",
				zap.String("kind", string(effect.Kind)),
				zap.String("type", effect.Type),
				zap.String("recipient", effect.Recipient),
				zap.Error(err))
			return err
		}
		return nil
	}
}
