package amqp

import (
	"testing"
	"time"
)

func TestNewTransactionEventMessage(t *testing.T) {
	msg := NewTransactionEventMessage(EventTransactionCreated, "tx-123")

	if msg.Event != EventTransactionCreated {
		t.Errorf("Event = %v, want %v", msg.Event, EventTransactionCreated)
	}
	if msg.TransactionID != "tx-123" {
		t.Errorf("TransactionID = %v, want tx-123", msg.TransactionID)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestTransactionEventMessage_JSON(t *testing.T) {
	timestamp := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	msg := &TransactionEventMessage{
		Event:         EventTransactionDeleted,
		TransactionID: "tx-456",
		Timestamp:     timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := TransactionEventMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("TransactionEventMessageFromJSON() error = %v", err)
	}

	if parsed.Event != msg.Event {
		t.Errorf("Parsed Event = %v, want %v", parsed.Event, msg.Event)
	}
	if parsed.TransactionID != msg.TransactionID {
		t.Errorf("Parsed TransactionID = %v, want %v", parsed.TransactionID, msg.TransactionID)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestTransactionEventMessage_InvalidJSON(t *testing.T) {
	if _, err := TransactionEventMessageFromJSON([]byte(`{"event": 5}`)); err == nil {
		t.Error("TransactionEventMessageFromJSON() should fail with invalid JSON")
	}
}
