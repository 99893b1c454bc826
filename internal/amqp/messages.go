package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"ledger/internal/core"
)

// Event types published after a ledger change commits.
const (
	EventExpenseAppended = "expense.appended"
	EventLedgerCleared   = "ledger.cleared"
)

// LedgerEvent tells consumers the ledger changed. Appends carry the stored
// record; clears carry only the type and timestamp.
type LedgerEvent struct {
	Type      string    `json:"type"`
	ID        int64     `json:"id,omitempty"`
	Category  string    `json:"category,omitempty"`
	Amount    float64   `json:"amount,omitempty"`
	Month     string    `json:"month,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewAppendedEvent(e core.Expense) *LedgerEvent {
	return &LedgerEvent{
		Type:      EventExpenseAppended,
		ID:        e.ID,
		Category:  e.Category,
		Amount:    e.Amount,
		Month:     e.Month,
		Timestamp: time.Now().UTC(),
	}
}

func NewClearedEvent() *LedgerEvent {
	return &LedgerEvent{
		Type:      EventLedgerCleared,
		Timestamp: time.Now().UTC(),
	}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes a message body and rejects unknown types.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case EventExpenseAppended, EventLedgerCleared:
		return &msg, nil
	}
	return nil, fmt.Errorf("unknown event type %q", msg.Type)
}
