package amqp

import (
	"encoding/json"
	"time"
)

// Event kinds carried on the transaction queue.
const (
	EventTransactionCreated = "transaction.created"
	EventTransactionDeleted = "transaction.deleted"
)

// TransactionEventMessage is a lightweight notification that a transaction
// changed. It carries only the ID and event kind; consumers fetch the full
// row from storage.
type TransactionEventMessage struct {
	Event         string    `json:"event"`
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionEventMessage(event, transactionID string) *TransactionEventMessage {
	return &TransactionEventMessage{
		Event:         event,
		TransactionID: transactionID,
		Timestamp:     time.Now(),
	}
}

func (m *TransactionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionEventMessageFromJSON(data []byte) (*TransactionEventMessage, error) {
	var msg TransactionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
