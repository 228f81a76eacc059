// Package tasks defines the structure for messages that are sent to Kafka.
package tasks

import "time"

// TrainingPairEvent is published for every training pair the learner accepts.
type TrainingPairEvent struct {
	ID        string    `json:"id"`
	Previous  string    `json:"previous"`
	Current   string    `json:"current"`
	Pair      string    `json:"pair"`
	CreatedAt time.Time `json:"created_at"`
}
