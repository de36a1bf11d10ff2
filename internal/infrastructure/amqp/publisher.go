package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/Zhima-Mochi/minishop-payment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-payment/internal/observability"
	"github.com/Zhima-Mochi/minishop-payment/internal/observability/logctx"
	amqp "github.com/rabbitmq/amqp091-go"
)

const componentPublisher = "amqp_publisher"

var ErrClosed = errors.New("amqp publisher: closed")

// Topology names the exchange, queue and binding the dispatch consumer reads from.
type Topology struct {
	Exchange   string
	Queue      string
	RoutingKey string
}

// DefaultTopology matches the shop's dispatch service.
var DefaultTopology = Topology{Exchange: "robot-shop", Queue: "orders", RoutingKey: "orders"}

// channel is the subset of *amqp.Channel used by the publisher.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// connector opens a channel together with the connection that owns it. ctx bounds the dial
// and the protocol handshake.
type connector func(ctx context.Context) (channel, io.Closer, error)

const handshakeTimeout = 30 * time.Second

// Publisher publishes events as persistent JSON messages. The connection is opened lazily
// and re-opened on the next publish after it breaks. Dialing happens outside mu, so a slow
// reconnect never stalls publishes that already hold a channel.
type Publisher struct {
	mu     sync.Mutex // guards ch, conn and closed
	ch     channel
	conn   io.Closer
	closed bool

	dialing  chan struct{} // one slot; held by the goroutine currently dialing
	connect  connector
	topology Topology
	log      observability.Logger
}

// URL builds the broker address from its parts.
func URL(host, user, password string) string {
	return fmt.Sprintf("amqp://%s:%s@%s:5672/", user, password, host)
}

func NewPublisher(url string, topology Topology, logger observability.Logger) *Publisher {
	return newPublisher(dialer(url), topology, logger)
}

func dialer(url string) connector {
	return func(ctx context.Context) (channel, io.Closer, error) {
		conn, err := amqp.DialConfig(url, amqp.Config{
			Heartbeat: 10 * time.Second,
			Locale:    "en_US",
			Dial: func(network, addr string) (net.Conn, error) {
				var d net.Dialer
				c, err := d.DialContext(ctx, network, addr)
				if err != nil {
					return nil, err
				}
				// Cleared by the client once the handshake completes.
				deadline, ok := ctx.Deadline()
				if !ok {
					deadline = time.Now().Add(handshakeTimeout)
				}
				if err := c.SetDeadline(deadline); err != nil {
					_ = c.Close()
					return nil, err
				}
				return c, nil
			},
		})
		if err != nil {
			return nil, nil, err
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return ch, conn, nil
	}
}

func newPublisher(c connector, topology Topology, logger observability.Logger) *Publisher {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Publisher{
		dialing:  make(chan struct{}, 1),
		connect:  c,
		topology: topology,
		log:      logger.With(observability.F("component", componentPublisher)),
	}
}

// Connect opens the channel and declares the topology ahead of the first publish.
func (p *Publisher) Connect(ctx context.Context) error {
	_, err := p.channel(ctx)
	return err
}

func (p *Publisher) Publish(ctx context.Context, e outbox.Event, h outbox.Headers) error {
	if e == nil {
		return nil
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("amqp publisher: encode %s: %w", e.EventName(), err)
	}

	headers := amqp.Table{}
	for k, v := range h {
		headers[k] = v
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         e.EventName(),
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         body,
	}
	if k, ok := e.(interface{ Key() string }); ok {
		msg.MessageId = k.Key()
	}

	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx, p.topology.Exchange, p.topology.RoutingKey, false, false, msg); err != nil {
		p.invalidate(ch)
		return fmt.Errorf("amqp publisher: publish %s: %w", e.EventName(), err)
	}

	logctx.FromOr(ctx, p.log).Info("order_published",
		observability.F("event", e.EventName()),
		observability.F("message_id", msg.MessageId),
		observability.F("exchange", p.topology.Exchange),
		observability.F("routing_key", p.topology.RoutingKey),
	)
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.dropLocked()
}

// current returns the open channel, nil when a dial is needed, or ErrClosed.
func (p *Publisher) current() (channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	return nil, nil
}

func (p *Publisher) channel(ctx context.Context) (channel, error) {
	if ch, err := p.current(); ch != nil || err != nil {
		return ch, err
	}

	select {
	case p.dialing <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("amqp publisher: connect: %w", ctx.Err())
	}
	defer func() { <-p.dialing }()

	// Someone else may have connected while we waited for the slot.
	if ch, err := p.current(); ch != nil || err != nil {
		return ch, err
	}

	ch, conn, err := p.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("amqp publisher: connect: %w", err)
	}
	if err := declare(ch, p.topology); err != nil {
		closeQuietly(ch, conn)
		return nil, fmt.Errorf("amqp publisher: declare topology: %w", err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		closeQuietly(ch, conn)
		return nil, ErrClosed
	}
	_ = p.dropLocked()
	p.ch, p.conn = ch, conn
	p.mu.Unlock()

	logctx.FromOr(ctx, p.log).Info("amqp_connected",
		observability.F("exchange", p.topology.Exchange),
		observability.F("queue", p.topology.Queue),
	)
	return ch, nil
}

// invalidate drops ch if it is still the current channel.
func (p *Publisher) invalidate(ch channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == ch {
		_ = p.dropLocked()
	}
}

func (p *Publisher) dropLocked() error {
	var errs []error
	if p.ch != nil {
		if !p.ch.IsClosed() {
			errs = append(errs, p.ch.Close())
		}
		p.ch = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}

func closeQuietly(ch channel, conn io.Closer) {
	_ = ch.Close()
	if conn != nil {
		_ = conn.Close()
	}
}

func declare(ch channel, t Topology) error {
	if err := ch.ExchangeDeclare(t.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return err
	}
	q, err := ch.QueueDeclare(t.Queue, true, false, false, false, nil)
	if err != nil {
		return err
	}
	return ch.QueueBind(q.Name, t.RoutingKey, t.Exchange, false, nil)
}
