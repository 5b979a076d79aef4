package sos

import (
	"context"
	"time"

	"github.com/navis-app/navis-api/internal/model"
)

// Event is the payload every notifier delivers.
type Event struct {
	AlertID   string        `json:"alertId"`
	UserID    string        `json:"userId"`
	UserName  string        `json:"userName"`
	Message   string        `json:"message"`
	Lat       float64       `json:"lat"`
	Lng       float64       `json:"lng"`
	MapURL    string        `json:"mapUrl"`
	Contact   model.Contact `json:"contact"`
	Timestamp time.Time     `json:"timestamp"`
}

// Notifier delivers an SOS event to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev Event) error
}
