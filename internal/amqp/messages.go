package amqp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"abbonamenti/internal/core"
)

// EventType names a persisted mutation.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// SubscriptionEvent is published after a mutation has been saved.
type SubscriptionEvent struct {
	Type      EventType       `json:"type"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Cost      decimal.Decimal `json:"cost"`
	Day       int             `json:"day"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewSubscriptionEvent(t EventType, s core.Subscription) *SubscriptionEvent {
	return &SubscriptionEvent{
		Type:      t,
		ID:        s.ID,
		Name:      s.Name,
		Cost:      s.Cost,
		Day:       s.Day,
		Timestamp: time.Now(),
	}
}

func (m *SubscriptionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SubscriptionEventFromJSON(data []byte) (*SubscriptionEvent, error) {
	var msg SubscriptionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// RenewalAlert announces a renewal falling inside the alert window.
type RenewalAlert struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Cost        decimal.Decimal `json:"cost"`
	NextRenewal time.Time       `json:"next_renewal"`
	Timestamp   time.Time       `json:"timestamp"`
}

func NewRenewalAlert(l core.Listing, now time.Time) *RenewalAlert {
	return &RenewalAlert{
		ID:          l.ID,
		Name:        l.Name,
		Cost:        l.Cost,
		NextRenewal: l.NextRenewal,
		Timestamp:   now,
	}
}

func (m *RenewalAlert) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RenewalAlertFromJSON(data []byte) (*RenewalAlert, error) {
	var msg RenewalAlert
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
