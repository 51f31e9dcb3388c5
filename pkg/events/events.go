// Package events publishes domain events after the owning transaction commits.
package events

import (
	"context"
	"sync"
	"time"
)

const (
	TopicOrders   = "order_events"
	TopicProducts = "product_events"
	TopicUsers    = "user_events"
)

const (
	OrderPlaced        = "order_placed"
	OrderCancelled     = "order_cancelled"
	OrderStatusChanged = "order_status_changed"
	AccountBlocked     = "account_blocked"
	ProductCreated     = "product_created"
	ProductUpdated     = "product_updated"
	ProductDeleted     = "product_deleted"
	UserRegistered     = "user_registered"
)

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
	Close() error
}

type OrderLine struct {
	ProductID string `json:"productID"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type OrderEvent struct {
	Type    string      `json:"type"`
	OrderID string      `json:"orderID"`
	UserID  string      `json:"userID"`
	Status  string      `json:"status"`
	Total   string      `json:"total,omitempty"`
	Items   []OrderLine `json:"items,omitempty"`
	At      time.Time   `json:"at"`
}

type AccountEvent struct {
	Type                 string    `json:"type"`
	UserID               string    `json:"userID"`
	Email                string    `json:"email,omitempty"`
	CancelledOrdersCount int       `json:"cancelledOrdersCount"`
	At                   time.Time `json:"at"`
}

type ProductEvent struct {
	Type      string    `json:"type"`
	ProductID string    `json:"productID"`
	Name      string    `json:"name,omitempty"`
	Price     string    `json:"price,omitempty"`
	Stock     int       `json:"stock"`
	At        time.Time `json:"at"`
}

type Discard struct{}

func (Discard) PublishEvent(context.Context, string, string, any) error { return nil }
func (Discard) Close() error                                             { return nil }

type Recorded struct {
	Topic string
	Key   string
	Event any
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
	Err    error
}

func (r *Recorder) PublishEvent(_ context.Context, topic, key string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, Recorded{Topic: topic, Key: key, Event: event})
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}

// Types returns the "type" of every recorded event in publish order.
func (r *Recorder) Types() []string {
	var out []string
	for _, e := range r.Events() {
		switch ev := e.Event.(type) {
		case OrderEvent:
			out = append(out, ev.Type)
		case AccountEvent:
			out = append(out, ev.Type)
		case ProductEvent:
			out = append(out, ev.Type)
		}
	}
	return out
}
