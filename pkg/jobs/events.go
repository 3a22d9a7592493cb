package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"draftforge/pkg/domain"
)

// JobEvent is the wire shape of a terminal job notification. Results stay in
// the status store; subscribers poll or fetch them by id, which keeps event
// payloads small.
type JobEvent struct {
	JobID       string           `json:"jobId"`
	SubjectID   string           `json:"subjectId"`
	UserID      string           `json:"userId"`
	Operation   domain.Operation `json:"operation"`
	State       domain.JobState  `json:"state"`
	ErrorCode   string           `json:"errorCode,omitempty"`
	CompletedAt time.Time        `json:"completedAt"`
}

// AMQPPublisher pushes terminal job events to a RabbitMQ topic exchange for
// callers that subscribe instead of polling. Publishing is best effort; the
// status store remains the source of truth.
type AMQPPublisher struct {
	url      string
	exchange string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPPublisher connects and declares the exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("amqp url required")
	}
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		exchange = "draftforge.jobs"
	}
	p := &AMQPPublisher{url: url, exchange: exchange}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("amqp exchange declare: %w", err)
	}
	p.conn = conn
	p.channel = ch
	return nil
}

// Publish implements Publisher. Routing key: jobs.<operation>.<state>.
func (p *AMQPPublisher) Publish(ctx context.Context, job domain.GenerationJob) error {
	event := JobEvent{
		JobID:       job.ID,
		SubjectID:   job.SubjectID,
		UserID:      job.UserID,
		Operation:   job.Operation,
		State:       job.State,
		ErrorCode:   job.ErrorCode,
		CompletedAt: job.CompletedAt,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil || p.channel.IsClosed() {
		if err := p.connect(); err != nil {
			return err
		}
	}
	key := fmt.Sprintf("jobs.%s.%s", job.Operation, job.State)
	return p.channel.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now().UTC(),
		Body:        body,
	})
}

// Close releases the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
