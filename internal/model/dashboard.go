package model

import "time"

// SavedRoute is a named origin/destination pair kept by a user.
type SavedRoute struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	Name        string    `json:"name"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Route security levels a user can prefer.
const (
	SecurityLow     = "Baixa"
	SecurityMedium  = "Média"
	SecurityHigh    = "Alta"
	SecurityMaximum = "Máxima"
)

// Preferences are the user-tunable dashboard settings.
type Preferences struct {
	PreferredTime []string `json:"preferredTime"`
	RouteSecurity string   `json:"routeSecurity"`
}

// DefaultPreferences is what a new user starts with.
func DefaultPreferences() Preferences {
	return Preferences{PreferredTime: []string{"08:00"}, RouteSecurity: SecurityHigh}
}

// RouteEventKind distinguishes computed routes from saved-route selections.
type RouteEventKind string

const (
	RouteComputed RouteEventKind = "computed"
	RouteSelected RouteEventKind = "selected"
)

// RouteEvent is one route activity, used for usage charts.
type RouteEvent struct {
	UserID  string         `json:"-"`
	Kind    RouteEventKind `json:"kind"`
	RouteID string         `json:"routeId,omitempty"`
	At      time.Time      `json:"at"`
}
