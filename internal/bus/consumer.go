package bus

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const exchangeName = "reddit"

// Consumer binds a queue to the "reddit" topic exchange with two
// bindings per configured subreddit (routing keys "post.<subreddit>"
// and "comment.<subreddit>", §4.9, §6) and streams raw message bodies
// out.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

// Connect dials amqpURL and declares the topic exchange + an exclusive
// queue for this consumer.
func Connect(amqpURL string) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &Consumer{conn: conn, channel: ch, queue: q}, nil
}

// Close tears down the channel and connection.
func (c *Consumer) Close() error {
	c.channel.Close()
	return c.conn.Close()
}

// Rebind replaces all of the queue's bindings with one per subreddit
// in subreddits, for both post.<sub> and comment.<sub> routing keys.
// Called at startup and whenever the subreddit list file changes
// (§4.9, SPEC_FULL.md's fsnotify hot-reload addition).
func (c *Consumer) Rebind(subreddits []string, previous []string) error {
	for _, sub := range previous {
		for _, kind := range []string{"post", "comment"} {
			key := kind + "." + sub
			_ = c.channel.QueueUnbind(c.queue.Name, key, exchangeName, nil)
		}
	}
	for _, sub := range subreddits {
		for _, kind := range []string{"post", "comment"} {
			key := kind + "." + sub
			if err := c.channel.QueueBind(c.queue.Name, key, exchangeName, false, nil); err != nil {
				return fmt.Errorf("bind %s: %w", key, err)
			}
		}
	}
	return nil
}

// Consume returns a channel of raw message bodies. Acknowledgement is
// automatic on delivery (auto-ack) per §4.9: duplicate delivery is
// tolerated because all writes are keyed on unique external
// identifiers and short-circuit on conflict.
func (c *Consumer) Consume() (<-chan []byte, error) {
	deliveries, err := c.channel.Consume(c.queue.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	out := make(chan []byte)
	go func() {
		defer close(out)
		for d := range deliveries {
			out <- d.Body
		}
	}()
	return out, nil
}
