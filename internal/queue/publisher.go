package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Publisher struct {
	ch       *amqp.Channel
	exchange string
}

func NewPublisher(conn *Connection) *Publisher {
	return &Publisher{ch: conn.Channel(), exchange: conn.Exchange()}
}

// Publish routes body through the topic exchange.
func (p *Publisher) Publish(ctx context.Context, routingKey string, body interface{}) error {
	return p.publish(ctx, p.exchange, routingKey, body)
}

// PublishToQueue sends body straight to a named queue via the default
// exchange, bypassing topic routing. Used for work queues the consumers own.
func (p *Publisher) PublishToQueue(ctx context.Context, queue string, body interface{}) error {
	return p.publish(ctx, "", queue, body)
}

func (p *Publisher) publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	bytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	err = p.ch.PublishWithContext(ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         bytes,
			DeliveryMode: amqp.Persistent, // survives a broker restart
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}
