package domain

import "time"

// Conversation is a snapshot of the history between the current user and
// its participants. Messages are in arrival/send order.
type Conversation struct {
	ID             string
	ParticipantIDs []string
	Messages       []Message
	UnreadCount    int
	CreatedAt      time.Time
}

// ConversationSummary is one row of the inbox.
type ConversationSummary struct {
	ID             string
	ParticipantIDs []string
	LastMessage    string
	LastActivity   time.Time
	UnreadCount    int
}
