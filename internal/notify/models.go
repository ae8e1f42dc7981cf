package notify

import "time"

// MessageKind classifies why a message went out.
type MessageKind string

const (
	KindFailedCall        MessageKind = "failed_call"
	KindCallbackScheduled MessageKind = "callback_scheduled"
	KindFinalAttempt      MessageKind = "final_attempt"
	KindNextCycle         MessageKind = "next_cycle"
)

// MessageStatus tracks the delivery lifecycle of one outbound SMS.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusFailed    MessageStatus = "failed"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Message is the append-only log entry for one send attempt. Delivery and
// read receipts update status in place; the entry itself is never removed.
type Message struct {
	ID     string `json:"id" db:"id"`
	CaseID string `json:"case_id" db:"case_id"`

	Kind  MessageKind `json:"kind" db:"kind"`
	Phone string      `json:"phone" db:"phone"`
	Body  string      `json:"body" db:"body"`

	// Stage and reason snapshot from the failed call, for reporting.
	StageOrdinal int    `json:"stage_ordinal,omitempty" db:"stage_ordinal"`
	Reason       string `json:"reason,omitempty" db:"reason"`

	Status      MessageStatus `json:"status" db:"status"`
	ProviderRef string        `json:"provider_ref,omitempty" db:"provider_ref"`
	Error       string        `json:"error,omitempty" db:"error"`

	SentAt      time.Time  `json:"sent_at" db:"sent_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
	ReadAt      *time.Time `json:"read_at,omitempty" db:"read_at"`
}
