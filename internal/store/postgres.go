package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/navis-app/navis-api/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, maxConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	if maxConns <= 0 {
		maxConns = 10
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
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
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
	token_id   TEXT PRIMARY KEY,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS saved_routes (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	origin      TEXT NOT NULL,
	destination TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS preferences (
	user_id        TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	preferred_time JSONB NOT NULL,
	route_security TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS route_events (
	user_id  TEXT NOT NULL,
	kind     TEXT NOT NULL,
	route_id TEXT NOT NULL DEFAULT '',
	at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id         TEXT PRIMARY KEY,
	author     TEXT NOT NULL,
	avatar     TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	liked_by   JSONB NOT NULL DEFAULT '[]',
	comments   JSONB NOT NULL DEFAULT '[]',
	owner      TEXT NOT NULL,
	pinned     BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
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
	lat         DOUBLE PRECISION NOT NULL,
	lng         DOUBLE PRECISION NOT NULL,
	contact     JSONB NOT NULL,
	failures    JSONB NOT NULL DEFAULT '[]',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	canceled_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS locations (
	user_id    TEXT PRIMARY KEY,
	lat        DOUBLE PRECISION NOT NULL,
	lng        DOUBLE PRECISION NOT NULL,
	accuracy   DOUBLE PRECISION NOT NULL,
	source     TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_saved_routes_user ON saved_routes(user_id);
CREATE INDEX IF NOT EXISTS idx_route_events_user_at ON route_events(user_id, at DESC);
CREATE INDEX IF NOT EXISTS idx_sos_alerts_user ON sos_alerts(user_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Users

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.Name, u.Email, u.Role, u.Phone, u.CPF, u.Bio, u.AvatarURL, string(u.Plan),
		u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	if isPgUniqueViolation(err) {
		return eris.Wrapf(ErrConflict, "postgres: user %s", u.Email)
	}
	return eris.Wrap(err, "postgres: insert user")
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (s *PostgresStore) getUser(ctx context.Context, query, key string) (*model.User, error) {
	var u model.User
	var plan string
	err := s.pool.QueryRow(ctx, query, key).Scan(
		&u.ID, &u.Name, &u.Email, &u.Role, &u.Phone, &u.CPF, &u.Bio, &u.AvatarURL, &plan, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: user %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get user %s", key)
	}
	u.Plan = model.PlanID(plan)
	return &u, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, u *model.User) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET name = $1, email = $2, phone = $3, cpf = $4, bio = $5, avatar_url = $6, plan = $7, updated_at = $8 WHERE id = $9`,
		u.Name, u.Email, u.Phone, u.CPF, u.Bio, u.AvatarURL, string(u.Plan), u.UpdatedAt.UTC(), u.ID,
	)
	if isPgUniqueViolation(err) {
		return eris.Wrapf(ErrConflict, "postgres: email %s", u.Email)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: update user %s", u.ID)
	}
	return checkTag(tag, "user", u.ID)
}

// Revoked tokens

func (s *PostgresStore) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO revoked_tokens (token_id, expires_at) VALUES ($1, $2) ON CONFLICT (token_id) DO NOTHING`,
		tokenID, expiresAt.UTC(),
	)
	return eris.Wrap(err, "postgres: revoke token")
}

func (s *PostgresStore) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	var revoked bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_id = $1)`, tokenID,
	).Scan(&revoked)
	return revoked, eris.Wrap(err, "postgres: check revoked token")
}

// Saved routes

func (s *PostgresStore) CreateSavedRoute(ctx context.Context, r *model.SavedRoute) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO saved_routes (id, user_id, name, origin, destination, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.UserID, r.Name, r.Origin, r.Destination, r.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: insert saved route")
}

func (s *PostgresStore) ListSavedRoutes(ctx context.Context, userID string) ([]model.SavedRoute, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, origin, destination, created_at FROM saved_routes WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list saved routes")
	}
	defer rows.Close()

	out := []model.SavedRoute{}
	for rows.Next() {
		var r model.SavedRoute
		if err := rows.Scan(&r.ID, &r.UserID, &r.Name, &r.Origin, &r.Destination, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan saved route")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list saved routes iterate")
}

func (s *PostgresStore) GetSavedRoute(ctx context.Context, userID, id string) (*model.SavedRoute, error) {
	var r model.SavedRoute
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, name, origin, destination, created_at FROM saved_routes WHERE user_id = $1 AND id = $2`,
		userID, id,
	).Scan(&r.ID, &r.UserID, &r.Name, &r.Origin, &r.Destination, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: saved route %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get saved route")
	}
	return &r, nil
}

func (s *PostgresStore) RenameSavedRoute(ctx context.Context, userID, id, name string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE saved_routes SET name = $1 WHERE user_id = $2 AND id = $3`, name, userID, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: rename saved route %s", id)
	}
	return checkTag(tag, "saved route", id)
}

func (s *PostgresStore) DeleteSavedRoute(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM saved_routes WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete saved route %s", id)
	}
	return checkTag(tag, "saved route", id)
}

func (s *PostgresStore) CountSavedRoutes(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM saved_routes WHERE user_id = $1`, userID).Scan(&n)
	return n, eris.Wrap(err, "postgres: count saved routes")
}

// Dashboard

func (s *PostgresStore) GetPreferences(ctx context.Context, userID string) (*model.Preferences, error) {
	var timesJSON []byte
	var p model.Preferences
	err := s.pool.QueryRow(ctx,
		`SELECT preferred_time, route_security FROM preferences WHERE user_id = $1`, userID,
	).Scan(&timesJSON, &p.RouteSecurity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: preferences for %s", userID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get preferences")
	}
	if err := unmarshalStrings(timesJSON, &p.PreferredTime); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) SavePreferences(ctx context.Context, userID string, p model.Preferences) error {
	timesJSON, err := marshalJSON(p.PreferredTime)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO preferences (user_id, preferred_time, route_security) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET preferred_time = EXCLUDED.preferred_time, route_security = EXCLUDED.route_security`,
		userID, []byte(timesJSON), p.RouteSecurity,
	)
	return eris.Wrap(err, "postgres: save preferences")
}

func (s *PostgresStore) RecordRouteEvent(ctx context.Context, e model.RouteEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO route_events (user_id, kind, route_id, at) VALUES ($1, $2, $3, $4)`,
		e.UserID, string(e.Kind), e.RouteID, e.At.UTC(),
	)
	return eris.Wrap(err, "postgres: insert route event")
}

func (s *PostgresStore) ListRouteEvents(ctx context.Context, userID string, since time.Time) ([]model.RouteEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT kind, route_id, at FROM route_events WHERE user_id = $1 AND at >= $2 ORDER BY at DESC`,
		userID, since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list route events")
	}
	defer rows.Close()

	out := []model.RouteEvent{}
	for rows.Next() {
		e := model.RouteEvent{UserID: userID}
		var kind string
		if err := rows.Scan(&kind, &e.RouteID, &e.At); err != nil {
			return nil, eris.Wrap(err, "postgres: scan route event")
		}
		e.Kind = model.RouteEventKind(kind)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list route events iterate")
}

// Community feed

func (s *PostgresStore) CreatePost(ctx context.Context, p *model.Post) error {
	likes, comments, err := marshalPostLists(p)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO posts (`+postColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Author, p.Avatar, p.Content, []byte(likes), []byte(comments), p.Owner, p.Pinned, p.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: insert post")
}

func (s *PostgresStore) GetPost(ctx context.Context, id string) (*model.Post, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	p, err := scanPgPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: post %s", id)
	}
	return p, err
}

func (s *PostgresStore) ListPosts(ctx context.Context) ([]model.Post, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+postColumns+` FROM posts ORDER BY pinned DESC, created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list posts")
	}
	defer rows.Close()

	out := []model.Post{}
	for rows.Next() {
		p, err := scanPgPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list posts iterate")
}

func (s *PostgresStore) UpdatePost(ctx context.Context, p *model.Post) error {
	likes, comments, err := marshalPostLists(p)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE posts SET content = $1, liked_by = $2, comments = $3, pinned = $4 WHERE id = $5`,
		p.Content, []byte(likes), []byte(comments), p.Pinned, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update post %s", p.ID)
	}
	return checkTag(tag, "post", p.ID)
}

func (s *PostgresStore) DeletePost(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete post %s", id)
	}
	return checkTag(tag, "post", id)
}

func (s *PostgresStore) SetPinned(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE posts SET pinned = (id = $1)`, id)
	return eris.Wrap(err, "postgres: set pinned")
}

// SOS

func (s *PostgresStore) SaveContact(ctx context.Context, userID string, c model.Contact) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sos_contacts (user_id, name, phone, email) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET name = EXCLUDED.name, phone = EXCLUDED.phone, email = EXCLUDED.email`,
		userID, c.Name, c.Phone, c.Email,
	)
	return eris.Wrap(err, "postgres: save contact")
}

func (s *PostgresStore) GetContact(ctx context.Context, userID string) (*model.Contact, error) {
	var c model.Contact
	err := s.pool.QueryRow(ctx,
		`SELECT name, phone, email FROM sos_contacts WHERE user_id = $1`, userID,
	).Scan(&c.Name, &c.Phone, &c.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: contact for %s", userID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get contact")
	}
	return &c, nil
}

func (s *PostgresStore) CreateAlert(ctx context.Context, a *model.Alert) error {
	contact, failures, err := marshalAlertLists(a)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sos_alerts (id, user_id, state, message, lat, lng, contact, failures, created_at, canceled_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.UserID, string(a.State), a.Message, a.Lat, a.Lng, []byte(contact), []byte(failures),
		a.CreatedAt.UTC(), a.CanceledAt,
	)
	return eris.Wrap(err, "postgres: insert alert")
}

func (s *PostgresStore) GetAlert(ctx context.Context, id string) (*model.Alert, error) {
	var (
		a                 model.Alert
		state             string
		contact, failures []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, state, message, lat, lng, contact, failures, created_at, canceled_at FROM sos_alerts WHERE id = $1`, id,
	).Scan(&a.ID, &a.UserID, &state, &a.Message, &a.Lat, &a.Lng, &contact, &failures, &a.CreatedAt, &a.CanceledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: alert %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get alert")
	}
	a.State = model.AlertState(state)
	if err := unmarshalAlertLists(&a, contact, failures); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) UpdateAlert(ctx context.Context, a *model.Alert) error {
	_, failures, err := marshalAlertLists(a)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE sos_alerts SET state = $1, failures = $2, canceled_at = $3 WHERE id = $4`,
		string(a.State), []byte(failures), a.CanceledAt, a.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update alert %s", a.ID)
	}
	return checkTag(tag, "alert", a.ID)
}

// Locations

func (s *PostgresStore) SaveLocation(ctx context.Context, loc model.Location) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO locations (user_id, lat, lng, accuracy, source, updated_at) VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET lat = EXCLUDED.lat, lng = EXCLUDED.lng, accuracy = EXCLUDED.accuracy,
		 source = EXCLUDED.source, updated_at = EXCLUDED.updated_at`,
		loc.UserID, loc.Lat, loc.Lng, loc.Accuracy, loc.Source, loc.UpdatedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: save location")
}

func (s *PostgresStore) GetLocation(ctx context.Context, userID string) (*model.Location, error) {
	loc := model.Location{UserID: userID}
	err := s.pool.QueryRow(ctx,
		`SELECT lat, lng, accuracy, source, updated_at FROM locations WHERE user_id = $1`, userID,
	).Scan(&loc.Lat, &loc.Lng, &loc.Accuracy, &loc.Source, &loc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: location for %s", userID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get location")
	}
	return &loc, nil
}

// helpers

func checkTag(tag pgconn.CommandTag, entity, id string) error {
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanPgPost(row pgx.Row) (*model.Post, error) {
	var p model.Post
	var likes, comments []byte
	err := row.Scan(&p.ID, &p.Author, &p.Avatar, &p.Content, &likes, &comments, &p.Owner, &p.Pinned, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan post")
	}
	if err := unmarshalPostLists(&p, likes, comments); err != nil {
		return nil, err
	}
	return &p, nil
}
