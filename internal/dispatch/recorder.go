// Package dispatch wraps a single outbound send in the
// log-then-surface bookkeeping that guarantees one durable record per
// attempt. The record is written after the attempt resolves, so a
// transient "sending" state never hits the store and no orphaned
// non-terminal rows can exist once a call returns.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wagate/wagate/internal/model"
)

// insertTimeout bounds the terminal-row write once the attempt has
// resolved. It is applied to a context detached from the caller's, so
// a client disconnect cannot abort the bookkeeping.
const insertTimeout = 5 * time.Second

// Sender is the slice of the gateway the recorder needs.
type Sender interface {
	Send(ctx context.Context, userID, number, message string) error
}

// LogStore is the slice of the message-log repository the recorder
// needs.
type LogStore interface {
	Insert(ctx context.Context, m *model.MessageLog) error
}

// Result is returned to the caller after a successful dispatch.
type Result struct {
	Status  string `json:"status"`
	To      string `json:"to"`
	Message string `json:"message"`
}

// Recorder performs one send attempt and records its terminal status.
type Recorder struct {
	engine Sender
	logs   LogStore
	prefix string // default international prefix for bare numbers
}

func New(engine Sender, logs LogStore, countryPrefix string) *Recorder {
	return &Recorder{engine: engine, logs: logs, prefix: countryPrefix}
}

// Normalize prepends the configured country prefix to numbers that
// lack a leading "+".
func (r *Recorder) Normalize(number string) string {
	number = strings.TrimSpace(number)
	if !strings.HasPrefix(number, "+") {
		return r.prefix + number
	}
	return number
}

// Send normalizes the destination, makes exactly one gateway attempt
// and persists exactly one terminal MessageLog row: sent on success,
// failed (with the error text) otherwise. The failure is then
// surfaced to the caller, never swallowed. A disconnecting client does
// not cancel the bookkeeping: the row is written regardless of whether
// anyone is still listening.
func (r *Recorder) Send(ctx context.Context, userID, number, message, source string) (Result, error) {
	// Detach from the caller's cancellation: once the attempt starts,
	// the engine may deliver even if the client goes away, and the
	// terminal row must be written either way. The gateway applies its
	// own per-call deadline to this context.
	ctx = context.WithoutCancel(ctx)

	to := r.Normalize(number)
	entry := &model.MessageLog{
		ID:             uuid.NewString(),
		UserID:         userID,
		ReceiverNumber: to,
		MessageBody:    message,
		Source:         source,
	}

	sendErr := r.engine.Send(ctx, userID, to, message)
	if sendErr != nil {
		entry.Status = model.MessageFailed
		entry.Error = sendErr.Error()
		if err := r.record(ctx, entry); err != nil {
			// The failure itself still takes precedence for the caller.
			log.Printf("dispatch: recording failed attempt for user %s: %v", userID, err)
		}
		return Result{}, sendErr
	}

	entry.Status = model.MessageSent
	if err := r.record(ctx, entry); err != nil {
		return Result{}, fmt.Errorf("message delivered but recording failed: %w", err)
	}
	return Result{Status: "success", To: to, Message: "Message sent successfully"}, nil
}

func (r *Recorder) record(ctx context.Context, entry *model.MessageLog) error {
	ctx, cancel := context.WithTimeout(ctx, insertTimeout)
	defer cancel()
	return r.logs.Insert(ctx, entry)
}
