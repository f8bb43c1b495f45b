package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"localchat/internal/ai"
	"localchat/internal/model"
	"localchat/internal/repository"
	"localchat/internal/task"
)

// PullExecutor runs one pull task to completion and appends the
// terminal status string to the requesting session. It is shared by the
// in-process runner and the queue worker so both paths behave the same.
type PullExecutor struct {
	client *ai.Client
	repo   *repository.MessageRepository
	logger *zap.Logger
}

func NewPullExecutor(client *ai.Client, repo *repository.MessageRepository, logger *zap.Logger) *PullExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PullExecutor{client: client, repo: repo, logger: logger}
}

func (e *PullExecutor) Execute(ctx context.Context, t task.PullTask) {
	status := e.client.Pull(ctx, t.Model, true, func(chunk string) {
		e.logger.Info("pull progress",
			zap.String("task_id", t.ID),
			zap.String("model", t.Model),
			zap.String("chunk", chunk),
		)
	})
	e.logger.Info("pull task finished",
		zap.String("task_id", t.ID),
		zap.String("model", t.Model),
		zap.String("status", status),
	)

	if t.SessionID == "" {
		return
	}
	if err := e.repo.AppendText(t.SessionID, model.SenderAssistant, status); err != nil {
		e.logger.Error("persist pull status failed",
			zap.String("task_id", t.ID),
			zap.Error(err),
		)
	}
}

// PullWorker consumes pull tasks from a durable queue.
type PullWorker struct {
	conn      *amqp.Connection
	executor  *PullExecutor
	queueName string
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPullWorker(conn *amqp.Connection, executor *PullExecutor, queueName string, logger *zap.Logger) *PullWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PullWorker{
		conn:      conn,
		executor:  executor,
		queueName: queueName,
		logger:    logger,
	}
}

func (w *PullWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var t task.PullTask
				if err := json.Unmarshal(d.Body, &t); err != nil {
					w.logger.Error("decode pull task failed", zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}

				w.executor.Execute(workerCtx, t)
				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *PullWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
