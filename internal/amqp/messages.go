package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventType names a committed ledger write.
type EventType string

const (
	EventContributionCreated EventType = "contribution.created"
	EventExpenseCreated      EventType = "expense.created"
	EventExpenseUpdated      EventType = "expense.updated"
)

var ErrInvalidEvent = errors.New("invalid ledger event")

// LedgerEvent tells consumers that a pot's ledger changed. It carries ids
// only; consumers reload whatever they need from the database.
type LedgerEvent struct {
	Type      EventType `json:"type"`
	PotID     string    `json:"pot_id"`
	EntityID  string    `json:"entity_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(t EventType, potID, entityID string) LedgerEvent {
	return LedgerEvent{
		Type:      t,
		PotID:     potID,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
}

func (t EventType) Valid() bool {
	switch t {
	case EventContributionCreated, EventExpenseCreated, EventExpenseUpdated:
		return true
	}
	return false
}

func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and checks an event body.
func LedgerEventFromJSON(data []byte) (LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return LedgerEvent{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if !e.Type.Valid() {
		return LedgerEvent{}, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	if e.PotID == "" {
		return LedgerEvent{}, fmt.Errorf("%w: missing pot_id", ErrInvalidEvent)
	}
	return e, nil
}
