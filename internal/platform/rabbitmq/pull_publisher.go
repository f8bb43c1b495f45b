package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"localchat/internal/task"
)

// PullPublisher submits pull tasks to a durable queue consumed by
// worker.PullWorker. It satisfies task.PullRunner.
type PullPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewPullPublisher(conn *amqp.Connection, queueName string) *PullPublisher {
	return &PullPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *PullPublisher) Submit(ctx context.Context, t task.PullTask) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal pull task failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish pull task failed: %w", err)
	}
	return nil
}
