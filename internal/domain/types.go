package domain

import "time"

type IdentityID string
type MessageID string
type FeedbackID string

type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

type Timestamp = time.Time
