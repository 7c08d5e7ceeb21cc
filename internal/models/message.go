package models

import "time"

// Message is one chat line exchanged between a user and the admissions
// office. Rows are append-only: created once on a successful send, never
// updated or deleted.
type Message struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatSummary is the admin-facing preview of one conversation: the
// counterpart user and the latest message exchanged with them.
type ChatSummary struct {
	UserID      string    `json:"id"`
	LastMessage string    `json:"last_message"`
	LastUpdated time.Time `json:"last_updated"`
}
