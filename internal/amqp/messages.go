package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"intentdash/internal/core"
	"intentdash/internal/store"
)

// EventCommunicationAnalyzed is the message type and routing key of archive events.
const EventCommunicationAnalyzed = "communication.analyzed"

// CommunicationAnalyzedMessage carries one analyzed communication and its
// insights to the archive worker.
type CommunicationAnalyzedMessage struct {
	SessionID     string             `json:"session_id"`
	Communication core.Communication `json:"communication"`
	Insights      []core.Insight     `json:"insights"`
	Timestamp     time.Time          `json:"timestamp"`
}

func NewCommunicationAnalyzedMessage(rec store.Record) *CommunicationAnalyzedMessage {
	return &CommunicationAnalyzedMessage{
		SessionID:     rec.SessionID,
		Communication: rec.Communication,
		Insights:      rec.Insights,
		Timestamp:     time.Now(),
	}
}

// Record converts the message back into an archive record.
func (m *CommunicationAnalyzedMessage) Record() store.Record {
	return store.Record{
		SessionID:     m.SessionID,
		Communication: m.Communication,
		Insights:      m.Insights,
	}
}

func (m *CommunicationAnalyzedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CommunicationAnalyzedMessageFromJSON decodes a message body. A body without
// a communication id cannot be archived and is rejected.
func CommunicationAnalyzedMessageFromJSON(data []byte) (*CommunicationAnalyzedMessage, error) {
	var msg CommunicationAnalyzedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Communication.ID == "" {
		return nil, errors.New("message has no communication id")
	}
	return &msg, nil
}
