package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection owns one AMQP connection and channel and the topic exchange all
// domain events flow through. Queues are declared by their consumers.
type Connection struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func Dial(url, connectionName, exchange string) (*Connection, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Properties: amqp.Table{"connection_name": connectionName},
	})
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Connection{conn: conn, ch: ch, exchange: exchange}, nil
}

func (c *Connection) Channel() *amqp.Channel {
	return c.ch
}

func (c *Connection) Exchange() string {
	return c.exchange
}

// NotifyClose relays channel-level failures so the process can exit and be
// restarted by its supervisor.
func (c *Connection) NotifyClose() chan *amqp.Error {
	errs := make(chan *amqp.Error, 1)
	c.ch.NotifyClose(errs)
	return errs
}

func (c *Connection) Close() error {
	if err := c.ch.Close(); err != nil {
		c.conn.Close()
		return err
	}
	return c.conn.Close()
}
