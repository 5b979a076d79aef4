package model

import "time"

// AlertState is the lifecycle of an SOS alert.
type AlertState string

const (
	AlertReady    AlertState = "ready"
	AlertSent     AlertState = "sent"
	AlertCanceled AlertState = "canceled"
)

// Contact is the person notified when a user triggers SOS.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// Alert is one SOS trigger.
type Alert struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	State      AlertState `json:"state"`
	Message    string     `json:"message"`
	Lat        float64    `json:"lat"`
	Lng        float64    `json:"lng"`
	Contact    Contact    `json:"contact"`
	Failures   []string   `json:"failures,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	CanceledAt *time.Time `json:"canceledAt,omitempty"`
}

// Location is a user's last known position.
type Location struct {
	UserID    string    `json:"-"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updatedAt"`
}
