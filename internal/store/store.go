// Package store persists Navis state behind the Store interface. SQLite is
// the default backend; Postgres serves shared deployments.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/navis-app/navis-api/internal/model"
)

// Sentinel errors. Implementations wrap them so callers can use eris.Is.
var (
	ErrNotFound = eris.New("store: not found")
	ErrConflict = eris.New("store: already exists")
)

// Store defines the persistence interface for the app.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error

	// Revoked tokens
	RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)

	// Saved routes
	CreateSavedRoute(ctx context.Context, r *model.SavedRoute) error
	ListSavedRoutes(ctx context.Context, userID string) ([]model.SavedRoute, error)
	GetSavedRoute(ctx context.Context, userID, id string) (*model.SavedRoute, error)
	RenameSavedRoute(ctx context.Context, userID, id, name string) error
	DeleteSavedRoute(ctx context.Context, userID, id string) error
	CountSavedRoutes(ctx context.Context, userID string) (int, error)

	// Dashboard
	GetPreferences(ctx context.Context, userID string) (*model.Preferences, error)
	SavePreferences(ctx context.Context, userID string, p model.Preferences) error
	RecordRouteEvent(ctx context.Context, e model.RouteEvent) error
	ListRouteEvents(ctx context.Context, userID string, since time.Time) ([]model.RouteEvent, error)

	// Community feed
	CreatePost(ctx context.Context, p *model.Post) error
	GetPost(ctx context.Context, id string) (*model.Post, error)
	ListPosts(ctx context.Context) ([]model.Post, error)
	UpdatePost(ctx context.Context, p *model.Post) error
	DeletePost(ctx context.Context, id string) error
	// SetPinned pins id and unpins every other post. An empty id unpins all.
	SetPinned(ctx context.Context, id string) error

	// SOS
	SaveContact(ctx context.Context, userID string, c model.Contact) error
	GetContact(ctx context.Context, userID string) (*model.Contact, error)
	CreateAlert(ctx context.Context, a *model.Alert) error
	GetAlert(ctx context.Context, id string) (*model.Alert, error)
	UpdateAlert(ctx context.Context, a *model.Alert) error

	// Locations
	SaveLocation(ctx context.Context, loc model.Location) error
	GetLocation(ctx context.Context, userID string) (*model.Location, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured backend. The caller owns Close.
func Open(ctx context.Context, driver, databaseURL string, maxConns int32) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(databaseURL)
	case "postgres":
		return NewPostgres(ctx, databaseURL, maxConns)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
