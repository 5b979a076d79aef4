package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/navis-app/navis-api/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL UNIQUE,
	role       TEXT NOT NULL DEFAULT 'user',
	phone      TEXT NOT NULL DEFAULT '',
	cpf        TEXT NOT NULL DEFAULT '',
	bio        TEXT NOT NULL DEFAULT '',
	avatar_url TEXT NOT NULL DEFAULT '',
	plan       TEXT NOT NULL DEFAULT 'start',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
	token_id   TEXT PRIMARY KEY,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS saved_routes (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	origin      TEXT NOT NULL,
	destination TEXT NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS preferences (
	user_id        TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	preferred_time TEXT NOT NULL,
	route_security TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS route_events (
	user_id  TEXT NOT NULL,
	kind     TEXT NOT NULL,
	route_id TEXT NOT NULL DEFAULT '',
	at_unix  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id         TEXT PRIMARY KEY,
	author     TEXT NOT NULL,
	avatar     TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	liked_by   TEXT NOT NULL DEFAULT '[]',
	comments   TEXT NOT NULL DEFAULT '[]',
	owner      TEXT NOT NULL,
	pinned     INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sos_contacts (
	user_id TEXT PRIMARY KEY,
	name    TEXT NOT NULL,
	phone   TEXT NOT NULL,
	email   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sos_alerts (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	state       TEXT NOT NULL,
	message     TEXT NOT NULL,
	lat         REAL NOT NULL,
	lng         REAL NOT NULL,
	contact     TEXT NOT NULL,
	failures    TEXT NOT NULL DEFAULT '[]',
	created_at  DATETIME NOT NULL,
	canceled_at DATETIME
);

CREATE TABLE IF NOT EXISTS locations (
	user_id    TEXT PRIMARY KEY,
	lat        REAL NOT NULL,
	lng        REAL NOT NULL,
	accuracy   REAL NOT NULL,
	source     TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_saved_routes_user ON saved_routes(user_id);
CREATE INDEX IF NOT EXISTS idx_route_events_user_at ON route_events(user_id, at_unix);
CREATE INDEX IF NOT EXISTS idx_sos_alerts_user ON sos_alerts(user_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Users

const userColumns = `id, name, email, role, phone, cpf, bio, avatar_url, plan, created_at, updated_at`

func (s *SQLiteStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.Role, u.Phone, u.CPF, u.Bio, u.AvatarURL, string(u.Plan),
		u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return eris.Wrapf(ErrConflict, "sqlite: user %s", u.Email)
	}
	return eris.Wrap(err, "sqlite: insert user")
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row, id)
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row, email)
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, u *model.User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, phone = ?, cpf = ?, bio = ?, avatar_url = ?, plan = ?, updated_at = ? WHERE id = ?`,
		u.Name, u.Email, u.Phone, u.CPF, u.Bio, u.AvatarURL, string(u.Plan), u.UpdatedAt.UTC(), u.ID,
	)
	if isUniqueViolation(err) {
		return eris.Wrapf(ErrConflict, "sqlite: email %s", u.Email)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: update user %s", u.ID)
	}
	return checkRowsAffected(res, "user", u.ID)
}

// Revoked tokens

func (s *SQLiteStore) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (token_id, expires_at) VALUES (?, ?) ON CONFLICT(token_id) DO NOTHING`,
		tokenID, expiresAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: revoke token")
}

func (s *SQLiteStore) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM revoked_tokens WHERE token_id = ?`, tokenID).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: check revoked token")
	}
	return n > 0, nil
}

// Saved routes

func (s *SQLiteStore) CreateSavedRoute(ctx context.Context, r *model.SavedRoute) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO saved_routes (id, user_id, name, origin, destination, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Name, r.Origin, r.Destination, r.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: insert saved route")
}

func (s *SQLiteStore) ListSavedRoutes(ctx context.Context, userID string) ([]model.SavedRoute, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, origin, destination, created_at FROM saved_routes WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list saved routes")
	}
	defer rows.Close()

	out := []model.SavedRoute{}
	for rows.Next() {
		var r model.SavedRoute
		if err := rows.Scan(&r.ID, &r.UserID, &r.Name, &r.Origin, &r.Destination, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan saved route")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list saved routes iterate")
}

func (s *SQLiteStore) GetSavedRoute(ctx context.Context, userID, id string) (*model.SavedRoute, error) {
	var r model.SavedRoute
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, origin, destination, created_at FROM saved_routes WHERE user_id = ? AND id = ?`,
		userID, id,
	).Scan(&r.ID, &r.UserID, &r.Name, &r.Origin, &r.Destination, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: saved route %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get saved route")
	}
	return &r, nil
}

func (s *SQLiteStore) RenameSavedRoute(ctx context.Context, userID, id, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE saved_routes SET name = ? WHERE user_id = ? AND id = ?`, name, userID, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: rename saved route %s", id)
	}
	return checkRowsAffected(res, "saved route", id)
}

func (s *SQLiteStore) DeleteSavedRoute(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_routes WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete saved route %s", id)
	}
	return checkRowsAffected(res, "saved route", id)
}

func (s *SQLiteStore) CountSavedRoutes(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM saved_routes WHERE user_id = ?`, userID).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count saved routes")
}

// Dashboard

func (s *SQLiteStore) GetPreferences(ctx context.Context, userID string) (*model.Preferences, error) {
	var timesJSON string
	var p model.Preferences
	err := s.db.QueryRowContext(ctx,
		`SELECT preferred_time, route_security FROM preferences WHERE user_id = ?`, userID,
	).Scan(&timesJSON, &p.RouteSecurity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: preferences for %s", userID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get preferences")
	}
	if err := unmarshalStrings([]byte(timesJSON), &p.PreferredTime); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) SavePreferences(ctx context.Context, userID string, p model.Preferences) error {
	timesJSON, err := marshalJSON(p.PreferredTime)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO preferences (user_id, preferred_time, route_security) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET preferred_time = excluded.preferred_time, route_security = excluded.route_security`,
		userID, timesJSON, p.RouteSecurity,
	)
	return eris.Wrap(err, "sqlite: save preferences")
}

func (s *SQLiteStore) RecordRouteEvent(ctx context.Context, e model.RouteEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO route_events (user_id, kind, route_id, at_unix) VALUES (?, ?, ?, ?)`,
		e.UserID, string(e.Kind), e.RouteID, e.At.UnixMilli(),
	)
	return eris.Wrap(err, "sqlite: insert route event")
}

func (s *SQLiteStore) ListRouteEvents(ctx context.Context, userID string, since time.Time) ([]model.RouteEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, route_id, at_unix FROM route_events WHERE user_id = ? AND at_unix >= ? ORDER BY at_unix DESC`,
		userID, since.UnixMilli(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list route events")
	}
	defer rows.Close()

	out := []model.RouteEvent{}
	for rows.Next() {
		e := model.RouteEvent{UserID: userID}
		var kind string
		var at int64
		if err := rows.Scan(&kind, &e.RouteID, &at); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan route event")
		}
		e.Kind = model.RouteEventKind(kind)
		e.At = time.UnixMilli(at).UTC()
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list route events iterate")
}

// Community feed

const postColumns = `id, author, avatar, content, liked_by, comments, owner, pinned, created_at`

func (s *SQLiteStore) CreatePost(ctx context.Context, p *model.Post) error {
	likes, comments, err := marshalPostLists(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO posts (`+postColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Author, p.Avatar, p.Content, likes, comments, p.Owner, p.Pinned, p.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: insert post")
}

func (s *SQLiteStore) GetPost(ctx context.Context, id string) (*model.Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: post %s", id)
	}
	return p, err
}

func (s *SQLiteStore) ListPosts(ctx context.Context) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts ORDER BY pinned DESC, created_at DESC, rowid DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list posts")
	}
	defer rows.Close()

	out := []model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list posts iterate")
}

func (s *SQLiteStore) UpdatePost(ctx context.Context, p *model.Post) error {
	likes, comments, err := marshalPostLists(p)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET content = ?, liked_by = ?, comments = ?, pinned = ? WHERE id = ?`,
		p.Content, likes, comments, p.Pinned, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update post %s", p.ID)
	}
	return checkRowsAffected(res, "post", p.ID)
}

func (s *SQLiteStore) DeletePost(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete post %s", id)
	}
	return checkRowsAffected(res, "post", id)
}

func (s *SQLiteStore) SetPinned(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE posts SET pinned = (id = ?)`, id)
	return eris.Wrap(err, "sqlite: set pinned")
}

// SOS

func (s *SQLiteStore) SaveContact(ctx context.Context, userID string, c model.Contact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sos_contacts (user_id, name, phone, email) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET name = excluded.name, phone = excluded.phone, email = excluded.email`,
		userID, c.Name, c.Phone, c.Email,
	)
	return eris.Wrap(err, "sqlite: save contact")
}

func (s *SQLiteStore) GetContact(ctx context.Context, userID string) (*model.Contact, error) {
	var c model.Contact
	err := s.db.QueryRowContext(ctx,
		`SELECT name, phone, email FROM sos_contacts WHERE user_id = ?`, userID,
	).Scan(&c.Name, &c.Phone, &c.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: contact for %s", userID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get contact")
	}
	return &c, nil
}

func (s *SQLiteStore) CreateAlert(ctx context.Context, a *model.Alert) error {
	contact, failures, err := marshalAlertLists(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sos_alerts (id, user_id, state, message, lat, lng, contact, failures, created_at, canceled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, string(a.State), a.Message, a.Lat, a.Lng, contact, failures,
		a.CreatedAt.UTC(), nullTime(a.CanceledAt),
	)
	return eris.Wrap(err, "sqlite: insert alert")
}

func (s *SQLiteStore) GetAlert(ctx context.Context, id string) (*model.Alert, error) {
	var (
		a                 model.Alert
		state             string
		contact, failures string
		canceledAt        sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, state, message, lat, lng, contact, failures, created_at, canceled_at FROM sos_alerts WHERE id = ?`, id,
	).Scan(&a.ID, &a.UserID, &state, &a.Message, &a.Lat, &a.Lng, &contact, &failures, &a.CreatedAt, &canceledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: alert %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get alert")
	}
	a.State = model.AlertState(state)
	if canceledAt.Valid {
		t := canceledAt.Time.UTC()
		a.CanceledAt = &t
	}
	if err := unmarshalAlertLists(&a, []byte(contact), []byte(failures)); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLiteStore) UpdateAlert(ctx context.Context, a *model.Alert) error {
	_, failures, err := marshalAlertLists(a)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sos_alerts SET state = ?, failures = ?, canceled_at = ? WHERE id = ?`,
		string(a.State), failures, nullTime(a.CanceledAt), a.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update alert %s", a.ID)
	}
	return checkRowsAffected(res, "alert", a.ID)
}

// Locations

func (s *SQLiteStore) SaveLocation(ctx context.Context, loc model.Location) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO locations (user_id, lat, lng, accuracy, source, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET lat = excluded.lat, lng = excluded.lng, accuracy = excluded.accuracy,
		 source = excluded.source, updated_at = excluded.updated_at`,
		loc.UserID, loc.Lat, loc.Lng, loc.Accuracy, loc.Source, loc.UpdatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: save location")
}

func (s *SQLiteStore) GetLocation(ctx context.Context, userID string) (*model.Location, error) {
	loc := model.Location{UserID: userID}
	err := s.db.QueryRowContext(ctx,
		`SELECT lat, lng, accuracy, source, updated_at FROM locations WHERE user_id = ?`, userID,
	).Scan(&loc.Lat, &loc.Lng, &loc.Accuracy, &loc.Source, &loc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: location for %s", userID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get location")
	}
	return &loc, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanUser(row scannable, key string) (*model.User, error) {
	var u model.User
	var plan string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Phone, &u.CPF, &u.Bio, &u.AvatarURL, &plan, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: user %s", key)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan user")
	}
	u.Plan = model.PlanID(plan)
	return &u, nil
}

func scanPost(row scannable) (*model.Post, error) {
	var p model.Post
	var likes, comments string
	err := row.Scan(&p.ID, &p.Author, &p.Avatar, &p.Content, &likes, &comments, &p.Owner, &p.Pinned, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan post")
	}
	if err := unmarshalPostLists(&p, []byte(likes), []byte(comments)); err != nil {
		return nil, err
	}
	return &p, nil
}
