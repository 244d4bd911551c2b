package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// PredictionSyncMessage asks the worker to mirror one stored prediction.
// Only the ID travels; the worker loads the document from the database.
type PredictionSyncMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPredictionSyncMessage(id string) *PredictionSyncMessage {
	return &PredictionSyncMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *PredictionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PredictionSyncMessageFromJSON decodes a message and rejects one without an ID.
func PredictionSyncMessageFromJSON(data []byte) (*PredictionSyncMessage, error) {
	var msg PredictionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errors.New("sync message has no prediction id")
	}
	return &msg, nil
}
