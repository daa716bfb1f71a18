package model

import "time"

type (
	// Message is a plaintext the server decoded and acknowledged.
	Message struct {
		SessionID  string    `json:"session_id" bson:"session_id"`
		Peer       string    `json:"peer" bson:"peer"`
		Algorithm  string    `json:"algorithm" bson:"algorithm"`
		Text       string    `json:"text" bson:"text"`
		Checksum   string    `json:"checksum" bson:"checksum"`
		ReceivedAt time.Time `json:"received_at" bson:"received_at"`
	}
)
