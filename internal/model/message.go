package model

import (
	"time"
)

// MessageKind is the closed set of message row types. SUMMARY rows are
// checkpoints: when rebuilding context, the most recent SUMMARY supersedes
// everything before it.
type MessageKind string

const (
	KindUser    MessageKind = "USER"
	KindAI      MessageKind = "AI"
	KindSummary MessageKind = "SUMMARY"
)

// Message is one row of the append-only conversation log. The serial ID is
// the only ordering authority; CreatedAt is used solely for calendar-day
// quota bucketing.
type Message struct {
	ID        int64       `json:"id" db:"id"`
	UserID    int64       `json:"user_id" db:"user_id"`
	Kind      MessageKind `json:"kind" db:"kind"`
	Content   string      `json:"content" db:"content"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}
