package domain

import "time"

// Message is one entry in a conversation transcript (user or agent).
// Messages are append-only and totally ordered by CreatedAt ascending.
type Message struct {
	ID        MessageID
	Sender    Sender
	Text      string
	CreatedAt Timestamp

	// Display attributes, carried only on user messages.
	AuthorName   string
	AuthorAvatar string
}

// QuotaRecord is the per-identity daily counter gating message volume.
// Count increments only when an agent message is successfully persisted;
// it resets to zero on the first check of a new calendar day.
type QuotaRecord struct {
	Count           int
	LastMessageDate time.Time
}

// Feedback is a write-only user report. Submission failures are logged
// and swallowed, never surfaced to the user.
type Feedback struct {
	ID        FeedbackID
	UserID    IdentityID
	UserName  string
	IsGuest   bool
	Text      string
	CreatedAt Timestamp
	UserAgent string
}
