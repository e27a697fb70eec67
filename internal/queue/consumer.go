package queue

import (
	"context"
	"fmt"
	"log"
	"sync"

	"voltpay/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
)

const retryCountHeader = "x-retry-count"

// Handler processes one decoded message body. A nil return acknowledges the
// message; an error classified permanent (domain.Permanent) acknowledges it
// without retry; any other error re-queues it with an incremented attempt
// count until the retry budget is spent, then dead-letters it.
type Handler func(ctx context.Context, body []byte) error

type disposition int

const (
	ackMessage disposition = iota
	dropPermanent
	requeueRetry
	deadLetter
)

// amqpChannel is the slice of *amqp.Channel the consumer loop needs; tests
// substitute an in-process implementation.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Cancel(consumer string, noWait bool) error
}

// Consumer is the shared dequeue -> handle -> ack/nack loop. Every consumer
// in the system runs on this; none reimplement retry or dead-lettering.
type Consumer struct {
	ch         amqpChannel
	queue      string
	tag        string
	handler    Handler
	maxRetries int
	prefetch   int

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
}

func NewConsumer(conn *Connection, queue, tag string, prefetch, maxRetries int, handler Handler) *Consumer {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{
		ch:         conn.Channel(),
		queue:      queue,
		tag:        tag,
		handler:    handler,
		maxRetries: maxRetries,
		prefetch:   prefetch,
	}
}

// Start declares the queue and its dead-letter sibling and begins consuming.
// Calling Start on a running consumer is a no-op.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	if _, err := c.ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	if _, err := c.ch.QueueDeclare(c.dlq(), true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.dlq(), err)
	}
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := c.ch.Consume(c.queue, c.tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.started = true
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		// One goroutine per delivery; Qos already caps in-flight work at
		// prefetch, so prefetch=1 keeps a queue strictly ordered while larger
		// values let handlers for different devices run side by side.
		for d := range msgs {
			c.wg.Add(1)
			go func(d amqp.Delivery) {
				defer c.wg.Done()
				c.process(ctx, d)
			}(d)
		}
	}()
	log.Printf("[queue] consumer %s started on %s (prefetch=%d maxRetries=%d)", c.tag, c.queue, c.prefetch, c.maxRetries)
	return nil
}

// Stop cancels the subscription. In-flight handlers run to completion before
// Stop returns. Stopping a consumer that never started is a no-op.
func (c *Consumer) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.mu.Unlock()
	if err := c.ch.Cancel(c.tag, false); err != nil {
		return fmt.Errorf("cancel consumer %s: %w", c.tag, err)
	}
	c.wg.Wait()
	return nil
}

func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	err := c.invoke(ctx, d.Body)
	retries := retryCount(d.Headers)
	switch decide(err, retries, c.maxRetries) {
	case ackMessage:
		c.ack(d)
	case dropPermanent:
		log.Printf("[queue] %s: permanent failure, not retrying: %v", c.queue, err)
		c.ack(d)
	case requeueRetry:
		log.Printf("[queue] %s: attempt %d failed, re-queueing: %v", c.queue, retries+1, err)
		if pubErr := c.republish(ctx, c.queue, d, retries+1); pubErr != nil {
			// Could not hand the message back; leave it to the broker.
			log.Printf("[queue] %s: republish failed: %v", c.queue, pubErr)
			_ = d.Nack(false, true)
			return
		}
		c.ack(d)
	case deadLetter:
		log.Printf("[queue] %s: retries exhausted (%d), dead-lettering: %v", c.queue, retries, err)
		if pubErr := c.republish(ctx, c.dlq(), d, retries); pubErr != nil {
			log.Printf("[queue] %s: dead-letter publish failed: %v", c.queue, pubErr)
			_ = d.Nack(false, true)
			return
		}
		c.ack(d)
	}
}

// invoke shields the loop from handler panics; a panic counts as a failure.
func (c *Consumer) invoke(ctx context.Context, body []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return c.handler(ctx, body)
}

func (c *Consumer) republish(ctx context.Context, queue string, d amqp.Delivery, retries int) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[retryCountHeader] = int32(retries)
	return c.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		Body:         d.Body,
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
	})
}

func (c *Consumer) ack(d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		log.Printf("[queue] %s: ack failed: %v", c.queue, err)
	}
}

func (c *Consumer) dlq() string {
	return c.queue + ".dlq"
}

// decide classifies a handler outcome into the runtime's four dispositions.
func decide(err error, retries, maxRetries int) disposition {
	if err == nil {
		return ackMessage
	}
	if domain.Permanent(err) {
		return dropPermanent
	}
	if retries < maxRetries {
		return requeueRetry
	}
	return deadLetter
}

// retryCount reads the attempt counter carried in message headers. AMQP table
// integers come back in whatever width the publisher used.
func retryCount(headers amqp.Table) int {
	v, ok := headers[retryCountHeader]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int8:
		return int(n)
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	default:
		return 0
	}
}
