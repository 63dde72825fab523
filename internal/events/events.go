// Package events fans catalog changes out to websocket subscribers.
package events

import "time"

const (
	TypeInsert  = "catalog.insert"
	TypeUpdate  = "catalog.update"
	TypeWelcome = "welcome"
)

// CatalogEvent describes one committed catalog mutation.
type CatalogEvent struct {
	Type   string    `json:"type"`
	Table  string    `json:"table"`
	ID     int64     `json:"id"`
	Title  string    `json:"title"`
	Bundle string    `json:"bundle"`
	At     time.Time `json:"at"`
}

// Publisher receives catalog events. *Hub implements it.
type Publisher interface {
	Publish(ev CatalogEvent)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(CatalogEvent) {}
