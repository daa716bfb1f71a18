package model

import "time"

// Session outcomes.
const (
	OutcomeOpen        = "open"
	OutcomeCompleted   = "completed"
	OutcomeChannelLost = "channel_lost"
	OutcomeCancelled   = "cancelled"
)

type (
	// Session is the audit record of one served connection.
	Session struct {
		ID         string     `json:"id" bson:"_id"`
		Peer       string     `json:"peer" bson:"peer"`
		Transport  string     `json:"transport" bson:"transport"`
		Algorithm  string     `json:"algorithm" bson:"algorithm"`
		Phase      string     `json:"phase" bson:"phase"`
		Outcome    string     `json:"outcome" bson:"outcome"`
		Messages   int        `json:"messages" bson:"messages"`
		StartedAt  time.Time  `json:"started_at" bson:"started_at"`
		FinishedAt *time.Time `json:"finished_at,omitempty" bson:"finished_at,omitempty"`
	}
)
