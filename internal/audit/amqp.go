package audit

import (
	"context"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/streadway/amqp"

	"infinity_stones/internal/errs"
)

const exchangeName = "cascade.audit"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AMQPPublisher публикует записи в topic exchange, routing key = kind
type AMQPPublisher struct {
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errs.Wrap(err, "amqp dial")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errs.Wrap(err, "amqp channel")
	}

	err = ch.ExchangeDeclare(
		exchangeName, // имя
		"topic",      // тип
		true,         // durable
		false,        // auto-delete
		false,        // internal
		false,        // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, errs.Wrap(err, "amqp exchange declare")
	}

	return &AMQPPublisher{conn: conn, ch: ch}, nil
}

// Publish amqp.Channel не потокобезопасен для публикации, поэтому под mu
func (p *AMQPPublisher) Publish(_ context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.Publish(
		exchangeName,
		string(rec.Kind),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    rec.ID,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    rec.At,
		},
	)
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
