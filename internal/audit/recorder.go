package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/wagate/wagate/internal/model"
	"github.com/wagate/wagate/internal/repository"
)

// Recorder publishes audit events to the broker. Recording is
// fire-and-forget from the caller's perspective: failures are logged
// and the event falls back to a direct database insert so the trail
// survives a broker outage. The trail is append-only either way.
type Recorder struct {
	url  string
	logs *repository.ActivityLogRepo
}

func NewRecorder(amqpURL string, logs *repository.ActivityLogRepo) *Recorder {
	return &Recorder{url: amqpURL, logs: logs}
}

// Record captures one action. It never returns an error to the
// request path; an audit write problem must not fail the action it
// describes.
func (r *Recorder) Record(ctx context.Context, userID, email, action, details, ip string) {
	ev := Event{
		ID:        uuid.NewString(),
		UserID:    userID,
		UserEmail: email,
		Action:    action,
		Details:   details,
		IPAddress: ip,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.publish(ctx, ev); err != nil {
		log.Printf("audit: publish failed, writing directly: %v", err)
		if err := r.logs.Insert(ctx, eventToRow(ev)); err != nil {
			log.Printf("audit: direct insert failed, event dropped: %v", err)
		}
	}
}

// publish dials, declares the durable queue (idempotent) and publishes
// one persistent message.
func (r *Recorder) publish(ctx context.Context, ev Event) error {
	conn, err := amqp.Dial(r.url)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx,
		"",        // default exchange
		queueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    ev.CreatedAt,
			Body:         body,
		},
	)
}

func eventToRow(ev Event) *model.ActivityLog {
	return &model.ActivityLog{
		ID:        ev.ID,
		UserID:    ev.UserID,
		UserEmail: ev.UserEmail,
		Action:    ev.Action,
		Details:   ev.Details,
		IPAddress: ev.IPAddress,
		CreatedAt: ev.CreatedAt,
	}
}
