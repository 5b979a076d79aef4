// Package dashboard implements the Navy dashboard: saved routes, plan
// limits, preferences and usage statistics.
package dashboard

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/navis-app/navis-api/internal/model"
	"github.com/navis-app/navis-api/internal/store"
)

var (
	ErrRouteNotFound   = eris.New("Rota não encontrada")
	ErrEmptyName       = eris.New("O nome da rota não pode ficar vazio")
	ErrMissingEndpoint = eris.New("Informe origem e destino")
	ErrUnknownPlan     = eris.New("Plano inválido")
	ErrInvalidSecurity = eris.New("Nível de segurança inválido")
	ErrInvalidTime     = eris.New("Horário inválido, use HH:MM")
)

// ErrPlanLimit reports that the user's plan cannot hold another saved route.
type ErrPlanLimit struct {
	Plan  string
	Limit int
}

func (e *ErrPlanLimit) Error() string {
	return fmt.Sprintf("Limite de %d rotas salvas atingido no plano %s", e.Limit, e.Plan)
}

const recentLimit = 5

var weekdays = []string{"Seg", "Ter", "Qua", "Qui", "Sex", "Sáb", "Dom"}

var securityLevels = []string{model.SecurityLow, model.SecurityMedium, model.SecurityHigh, model.SecurityMaximum}

// DayUsage is the number of computed routes on one weekday.
type DayUsage struct {
	Day   string `json:"day"`
	Value int    `json:"value"`
}

// Stats is the dashboard summary.
type Stats struct {
	Routes        int                `json:"routes"`
	Saved         int                `json:"saved"`
	AILearning    int                `json:"aiLearning"`
	PreferredTime []string           `json:"preferredTime"`
	RouteSecurity string             `json:"routeSecurity"`
	RecentRoutes  []model.SavedRoute `json:"recentRoutes"`
	Usage         []DayUsage         `json:"usage"`
	Plan          model.PlanID       `json:"plan"`
}

// Service implements the dashboard operations.
type Service struct {
	store store.Store
	clock clockwork.Clock
	loc   *time.Location
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLocation sets the time zone used to bucket weekly usage.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// NewService creates a dashboard Service.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{store: st, clock: clockwork.NewRealClock(), loc: time.UTC}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SaveRoute stores a named route within the user's plan limit. A blank name
// defaults to "origin → destination".
func (s *Service) SaveRoute(ctx context.Context, user *model.User, name, origin, destination string) (*model.SavedRoute, error) {
	origin = strings.TrimSpace(origin)
	destination = strings.TrimSpace(destination)
	if origin == "" || destination == "" {
		return nil, ErrMissingEndpoint
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = origin + " → " + destination
	}

	plan, ok := PlanByID(user.Plan)
	if !ok {
		plan, _ = PlanByID(model.PlanStart)
	}
	if plan.RouteLimit > 0 {
		n, err := s.store.CountSavedRoutes(ctx, user.ID)
		if err != nil {
			return nil, eris.Wrap(err, "dashboard: count routes")
		}
		if n >= plan.RouteLimit {
			return nil, &ErrPlanLimit{Plan: plan.Name, Limit: plan.RouteLimit}
		}
	}

	r := &model.SavedRoute{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Name:        name,
		Origin:      origin,
		Destination: destination,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if err := s.store.CreateSavedRoute(ctx, r); err != nil {
		return nil, eris.Wrap(err, "dashboard: save route")
	}
	return r, nil
}

// ListRoutes returns the user's saved routes, newest first.
func (s *Service) ListRoutes(ctx context.Context, userID string) ([]model.SavedRoute, error) {
	routes, err := s.store.ListSavedRoutes(ctx, userID)
	return routes, eris.Wrap(err, "dashboard: list routes")
}

// RenameRoute changes a saved route's name.
func (s *Service) RenameRoute(ctx context.Context, userID, routeID, name string) (*model.SavedRoute, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if err := s.store.RenameSavedRoute(ctx, userID, routeID, name); err != nil {
		return nil, notFound(err, "dashboard: rename route")
	}
	r, err := s.store.GetSavedRoute(ctx, userID, routeID)
	if err != nil {
		return nil, notFound(err, "dashboard: reload route")
	}
	return r, nil
}

// DeleteRoute removes a saved route.
func (s *Service) DeleteRoute(ctx context.Context, userID, routeID string) error {
	return notFound(s.store.DeleteSavedRoute(ctx, userID, routeID), "dashboard: delete route")
}

// SelectRoute marks a saved route as used and returns it.
func (s *Service) SelectRoute(ctx context.Context, userID, routeID string) (*model.SavedRoute, error) {
	r, err := s.store.GetSavedRoute(ctx, userID, routeID)
	if err != nil {
		return nil, notFound(err, "dashboard: select route")
	}
	if err := s.record(ctx, userID, model.RouteSelected, routeID); err != nil {
		return nil, err
	}
	return r, nil
}

// RecordComputed counts a computed route toward the user's stats.
func (s *Service) RecordComputed(ctx context.Context, userID string) error {
	return s.record(ctx, userID, model.RouteComputed, "")
}

func (s *Service) record(ctx context.Context, userID string, kind model.RouteEventKind, routeID string) error {
	err := s.store.RecordRouteEvent(ctx, model.RouteEvent{
		UserID:  userID,
		Kind:    kind,
		RouteID: routeID,
		At:      s.clock.Now().UTC(),
	})
	return eris.Wrap(err, "dashboard: record route event")
}

// Preferences returns the user's preferences or the defaults.
func (s *Service) Preferences(ctx context.Context, userID string) (model.Preferences, error) {
	p, err := s.store.GetPreferences(ctx, userID)
	if eris.Is(err, store.ErrNotFound) {
		return model.DefaultPreferences(), nil
	}
	if err != nil {
		return model.Preferences{}, eris.Wrap(err, "dashboard: get preferences")
	}
	return *p, nil
}

// UpdatePreferences validates and stores preferences.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, p model.Preferences) (model.Preferences, error) {
	if !slices.Contains(securityLevels, p.RouteSecurity) {
		return model.Preferences{}, ErrInvalidSecurity
	}
	times := make([]string, 0, len(p.PreferredTime))
	for _, t := range p.PreferredTime {
		t = strings.TrimSpace(t)
		if _, err := time.Parse("15:04", t); err != nil {
			return model.Preferences{}, ErrInvalidTime
		}
		times = append(times, t)
	}
	if len(times) == 0 {
		times = model.DefaultPreferences().PreferredTime
	}
	p.PreferredTime = times

	if err := s.store.SavePreferences(ctx, userID, p); err != nil {
		return model.Preferences{}, eris.Wrap(err, "dashboard: save preferences")
	}
	return p, nil
}

// ChangePlan switches the user's subscription plan.
func (s *Service) ChangePlan(ctx context.Context, user *model.User, id model.PlanID) (*model.User, error) {
	if _, ok := PlanByID(id); !ok {
		return nil, ErrUnknownPlan
	}
	updated := *user
	updated.Plan = id
	updated.UpdatedAt = s.clock.Now().UTC()
	if err := s.store.UpdateUser(ctx, &updated); err != nil {
		return nil, eris.Wrap(err, "dashboard: change plan")
	}
	zap.L().Info("dashboard: plan changed", zap.String("user_id", user.ID), zap.String("plan", string(id)))
	return &updated, nil
}

// Stats builds the dashboard summary for a user.
func (s *Service) Stats(ctx context.Context, user *model.User) (*Stats, error) {
	saved, err := s.store.ListSavedRoutes(ctx, user.ID)
	if err != nil {
		return nil, eris.Wrap(err, "dashboard: list routes")
	}
	events, err := s.store.ListRouteEvents(ctx, user.ID, time.Time{})
	if err != nil {
		return nil, eris.Wrap(err, "dashboard: list route events")
	}
	prefs, err := s.Preferences(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	recent := recentRoutes(events, saved)
	return &Stats{
		Routes:        len(events),
		Saved:         len(saved),
		AILearning:    AILearning(len(saved), len(recent)),
		PreferredTime: prefs.PreferredTime,
		RouteSecurity: prefs.RouteSecurity,
		RecentRoutes:  recent,
		Usage:         s.weeklyUsage(events),
		Plan:          user.Plan,
	}, nil
}

// AILearning is the assistant's learning score: 50 plus two points per
// saved or recent route, capped at 100.
func AILearning(saved, recent int) int {
	return min(50+(saved+recent)*2, 100)
}

// recentRoutes returns up to recentLimit distinct saved routes, most
// recently selected first. events must be newest first.
func recentRoutes(events []model.RouteEvent, saved []model.SavedRoute) []model.SavedRoute {
	byID := make(map[string]model.SavedRoute, len(saved))
	for _, r := range saved {
		byID[r.ID] = r
	}
	seen := make(map[string]bool)
	out := []model.SavedRoute{}
	for _, e := range events {
		if e.Kind != model.RouteSelected || seen[e.RouteID] {
			continue
		}
		r, ok := byID[e.RouteID]
		if !ok {
			continue
		}
		seen[e.RouteID] = true
		out = append(out, r)
		if len(out) == recentLimit {
			break
		}
	}
	return out
}

// weeklyUsage buckets this week's computed routes by weekday, Monday first.
func (s *Service) weeklyUsage(events []model.RouteEvent) []DayUsage {
	now := s.clock.Now().In(s.loc)
	offset := (int(now.Weekday()) + 6) % 7
	start := time.Date(now.Year(), now.Month(), now.Day()-offset, 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 0, 7)

	usage := make([]DayUsage, len(weekdays))
	for i, d := range weekdays {
		usage[i] = DayUsage{Day: d}
	}
	for _, e := range events {
		if e.Kind != model.RouteComputed {
			continue
		}
		at := e.At.In(s.loc)
		if at.Before(start) || !at.Before(end) {
			continue
		}
		usage[(int(at.Weekday())+6)%7].Value++
	}
	return usage
}

func notFound(err error, action string) error {
	if err == nil {
		return nil
	}
	if eris.Is(err, store.ErrNotFound) {
		return ErrRouteNotFound
	}
	return eris.Wrap(err, action)
}
