package amqp

import (
	"encoding/json"
	"time"

	"budgetledger/internal/core"
)

// CashFlowRecordedMessage announces a committed ledger event. It carries
// only the id; consumers read the event itself from the database.
type CashFlowRecordedMessage struct {
	ID        int64       `json:"id"`
	UserID    core.UserID `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewCashFlowRecordedMessage(id int64, userID core.UserID) *CashFlowRecordedMessage {
	return &CashFlowRecordedMessage{
		ID:        id,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *CashFlowRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func CashFlowRecordedMessageFromJSON(data []byte) (*CashFlowRecordedMessage, error) {
	var msg CashFlowRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
