package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navis-app/navis-api/internal/model"
)

var t0 = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedUser(t *testing.T, st Store, id, email string) *model.User {
	t.Helper()
	u := &model.User{
		ID: id, Name: "Usuário NAVIS", Email: email, Role: model.RoleUser,
		Plan: model.PlanStart, CreatedAt: t0, UpdatedAt: t0,
	}
	require.NoError(t, st.CreateUser(context.Background(), u))
	return u
}

func TestSQLite_MigrateIsIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Ping(context.Background()))
}

// --- Users ---

func TestSQLite_Users(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedUser(t, st, "u1", "ana@navis.com")

	got, err := st.GetUserByEmail(ctx, "ana@navis.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, model.PlanStart, got.Plan)
	assert.WithinDuration(t, t0, got.CreatedAt, time.Second)

	err = st.CreateUser(ctx, &model.User{ID: "u2", Name: "Outra", Email: "ana@navis.com", CreatedAt: t0, UpdatedAt: t0})
	assert.True(t, eris.Is(err, ErrConflict))

	got.Bio = "Navegante"
	got.Plan = model.PlanHorizon
	require.NoError(t, st.UpdateUser(ctx, got))
	again, err := st.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Navegante", again.Bio)
	assert.Equal(t, model.PlanHorizon, again.Plan)

	_, err = st.GetUser(ctx, "missing")
	assert.True(t, eris.Is(err, ErrNotFound))

	err = st.UpdateUser(ctx, &model.User{ID: "missing", Email: "x@y.z"})
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_RevokedTokens(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	revoked, err := st.IsTokenRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, st.RevokeToken(ctx, "tok", t0.Add(time.Hour)))
	require.NoError(t, st.RevokeToken(ctx, "tok", t0.Add(time.Hour)))

	revoked, err = st.IsTokenRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, revoked)
}

// --- Saved routes and dashboard ---

func TestSQLite_SavedRoutes(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedUser(t, st, "u1", "ana@navis.com")

	for i, name := range []string{"Casa", "Trabalho"} {
		require.NoError(t, st.CreateSavedRoute(ctx, &model.SavedRoute{
			ID: name, UserID: "u1", Name: name, Origin: "Sé", Destination: "Luz",
			CreatedAt: t0.Add(time.Duration(i) * time.Minute),
		}))
	}

	routes, err := st.ListSavedRoutes(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, "Trabalho", routes[0].Name, "newest first")

	n, err := st.CountSavedRoutes(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, st.RenameSavedRoute(ctx, "u1", "Casa", "Casa da vó"))
	r, err := st.GetSavedRoute(ctx, "u1", "Casa")
	require.NoError(t, err)
	assert.Equal(t, "Casa da vó", r.Name)

	// Other users cannot touch the route.
	assert.True(t, eris.Is(st.DeleteSavedRoute(ctx, "u2", "Casa"), ErrNotFound))
	require.NoError(t, st.DeleteSavedRoute(ctx, "u1", "Casa"))
	_, err = st.GetSavedRoute(ctx, "u1", "Casa")
	assert.True(t, eris.Is(err, ErrNotFound))

	empty, err := st.ListSavedRoutes(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestSQLite_PreferencesAndEvents(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedUser(t, st, "u1", "ana@navis.com")

	_, err := st.GetPreferences(ctx, "u1")
	assert.True(t, eris.Is(err, ErrNotFound))

	p := model.Preferences{PreferredTime: []string{"07:30", "18:00"}, RouteSecurity: model.SecurityMaximum}
	require.NoError(t, st.SavePreferences(ctx, "u1", p))
	p.RouteSecurity = model.SecurityMedium
	require.NoError(t, st.SavePreferences(ctx, "u1", p))

	got, err := st.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, p, *got)

	require.NoError(t, st.RecordRouteEvent(ctx, model.RouteEvent{UserID: "u1", Kind: model.RouteComputed, At: t0.Add(-48 * time.Hour)}))
	require.NoError(t, st.RecordRouteEvent(ctx, model.RouteEvent{UserID: "u1", Kind: model.RouteComputed, At: t0}))
	require.NoError(t, st.RecordRouteEvent(ctx, model.RouteEvent{UserID: "u1", Kind: model.RouteSelected, RouteID: "r1", At: t0.Add(time.Minute)}))

	events, err := st.ListRouteEvents(ctx, "u1", t0.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.RouteSelected, events[0].Kind)
	assert.Equal(t, "r1", events[0].RouteID)
	assert.True(t, t0.Equal(events[1].At))
}

// --- Feed ---

func TestSQLite_Posts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, st.CreatePost(ctx, &model.Post{
			ID: id, Author: "Ana", Content: "Olá " + id, Owner: "u1",
			CreatedAt: t0.Add(time.Duration(i) * time.Minute),
		}))
	}

	posts, err := st.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, []string{"p3", "p2", "p1"}, []string{posts[0].ID, posts[1].ID, posts[2].ID})
	assert.Equal(t, []string{}, posts[0].LikedBy)

	require.NoError(t, st.SetPinned(ctx, "p1"))
	posts, err = st.ListPosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p1", posts[0].ID)
	assert.True(t, posts[0].Pinned)

	// Pinning another post unpins the first.
	require.NoError(t, st.SetPinned(ctx, "p2"))
	p1, err := st.GetPost(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, p1.Pinned)

	p1.LikedBy = []string{"Bia"}
	p1.Comments = []model.Comment{{ID: "c1", Author: "Bia", Owner: "u2", Text: "Valeu!", CreatedAt: t0}}
	require.NoError(t, st.UpdatePost(ctx, p1))
	p1, err = st.GetPost(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bia"}, p1.LikedBy)
	require.Len(t, p1.Comments, 1)
	assert.Equal(t, "Valeu!", p1.Comments[0].Text)

	require.NoError(t, st.DeletePost(ctx, "p1"))
	_, err = st.GetPost(ctx, "p1")
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.True(t, eris.Is(st.DeletePost(ctx, "p1"), ErrNotFound))
}

// --- SOS and location ---

func TestSQLite_SOS(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetContact(ctx, "u1")
	assert.True(t, eris.Is(err, ErrNotFound))

	c := model.Contact{Name: "Mãe", Phone: "11999990000"}
	require.NoError(t, st.SaveContact(ctx, "u1", c))
	got, err := st.GetContact(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, c, *got)

	a := &model.Alert{
		ID: "a1", UserID: "u1", State: model.AlertSent, Message: "SOS!",
		Lat: -23.55, Lng: -46.63, Contact: c, CreatedAt: t0,
	}
	require.NoError(t, st.CreateAlert(ctx, a))

	loaded, err := st.GetAlert(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.AlertSent, loaded.State)
	assert.Nil(t, loaded.CanceledAt)
	assert.Nil(t, loaded.Failures)
	assert.Equal(t, c, loaded.Contact)

	canceled := t0.Add(5 * time.Second)
	loaded.State = model.AlertCanceled
	loaded.CanceledAt = &canceled
	loaded.Failures = []string{"webhook: status 500"}
	require.NoError(t, st.UpdateAlert(ctx, loaded))

	loaded, err = st.GetAlert(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.AlertCanceled, loaded.State)
	require.NotNil(t, loaded.CanceledAt)
	assert.True(t, canceled.Equal(*loaded.CanceledAt))
	assert.Equal(t, []string{"webhook: status 500"}, loaded.Failures)

	_, err = st.GetAlert(ctx, "missing")
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_Location(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetLocation(ctx, "u1")
	assert.True(t, eris.Is(err, ErrNotFound))

	loc := model.Location{UserID: "u1", Lat: -23.5505, Lng: -46.6333, Accuracy: 12, Source: "gps", UpdatedAt: t0}
	require.NoError(t, st.SaveLocation(ctx, loc))
	loc.Lat = -23.6
	require.NoError(t, st.SaveLocation(ctx, loc))

	got, err := st.GetLocation(ctx, "u1")
	require.NoError(t, err)
	assert.InDelta(t, -23.6, got.Lat, 1e-9)
	assert.Equal(t, "gps", got.Source)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x", 0)
	assert.Error(t, err)
}
