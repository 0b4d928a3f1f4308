package model

import "time"

// Terminal message statuses stored in message_logs.status. Every
// dispatch attempt writes exactly one terminal row; a transient
// "sending" state is never persisted because the row is inserted
// only after the attempt has resolved.
const (
	MessageSent   = "sent"
	MessageFailed = "failed"
)

// Source tags recorded with each message log, distinguishing the
// authenticated web UI path from the API-key query path.
const (
	SourceWeb = "web"
	SourceAPI = "api"
)

// MessageLog records a single outbound dispatch attempt as stored
// in the `message_logs` table. Rows are write-once: the status a
// row is inserted with is the status it keeps.
//
// Fields:
//  ID             – primary key, UUID string.
//  UserID         – owner of the attempt. Retained after user deletion
//                   for audit purposes.
//  ReceiverNumber – normalized destination address (international prefix).
//  MessageBody    – text that was handed to the engine.
//  Status         – "sent" or "failed".
//  Source         – "web" or "api".
//  Error          – engine or transport error text when Status is failed.
//  CreatedAt      – timestamp of the attempt.
type MessageLog struct {
	ID             string    // message_logs.id
	UserID         string    // message_logs.user_id
	ReceiverNumber string    // message_logs.receiver_number
	MessageBody    string    // message_logs.message_body
	Status         string    // message_logs.status
	Source         string    // message_logs.source
	Error          string    // message_logs.error
	CreatedAt      time.Time // message_logs.created_at
}
