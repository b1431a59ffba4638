package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DefaultExchange is the fanout exchange used when none is configured.
const DefaultExchange = "jerseyfolio.events"

// AMQPRelay shares messages between backend instances through a RabbitMQ
// fanout exchange. Each instance consumes from its own exclusive queue.
type AMQPRelay struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    amqp.Queue
	exchange string
	log      *zap.Logger
}

// DialAMQP connects to url and declares the exchange and this instance's queue.
func DialAMQP(url, exchange string, log *zap.Logger) (*AMQPRelay, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("broadcast: dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broadcast: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("broadcast: declare exchange %s: %w", exchange, err)
	}
	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broadcast: declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("broadcast: bind queue: %w", err)
	}
	log.Info("amqp relay ready", zap.String("exchange", exchange), zap.String("queue", q.Name))
	return &AMQPRelay{conn: conn, channel: ch, queue: q, exchange: exchange, log: log}, nil
}

// Publish implements Relay.
func (r *AMQPRelay) Publish(ctx context.Context, m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("broadcast: encode message: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = r.channel.PublishWithContext(ctx, r.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   m.ID,
		Timestamp:   m.At,
		Type:        string(m.Type),
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("broadcast: publish %s: %w", m.Type, err)
	}
	return nil
}

// Run consumes relayed messages and delivers those from other origins to
// hub until ctx is done or the connection drops.
func (r *AMQPRelay) Run(ctx context.Context, hub *Hub) error {
	deliveries, err := r.channel.Consume(
		r.queue.Name,
		"",    // consumer tag
		true,  // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("broadcast: consume: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("broadcast: delivery channel closed")
			}
			m, remote, err := decodeRelayed(d.Body, hub.Origin())
			if err != nil {
				r.log.Warn("dropping malformed relay message", zap.Error(err))
				continue
			}
			if remote {
				hub.Deliver(m)
			}
		}
	}
}

// decodeRelayed parses a relayed message and reports whether it came from
// another origin.
func decodeRelayed(body []byte, origin string) (Message, bool, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, false, err
	}
	if m.Type == "" {
		return Message{}, false, fmt.Errorf("message %q has no type", m.ID)
	}
	return m, m.Origin != origin, nil
}

// Close closes the channel and connection.
func (r *AMQPRelay) Close() error {
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.log.Warn("closing amqp channel", zap.Error(err))
		}
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
