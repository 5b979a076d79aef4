// Package sos implements the emergency alert flow: a press-and-hold trigger
// that notifies the user's emergency contact, a cancel window, and the
// automatic rearm after cancellation.
package sos

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/navis-app/navis-api/internal/metrics"
	"github.com/navis-app/navis-api/internal/model"
	"github.com/navis-app/navis-api/internal/store"
)

var (
	ErrNoContact      = eris.New("Cadastre um contato de emergência antes de usar o SOS")
	ErrInvalidContact = eris.New("Informe nome e telefone do contato de emergência")
	ErrHoldTooShort   = eris.New("Segure o botão para enviar o SOS")
	ErrAlertNotFound  = eris.New("Alerta não encontrado")
	ErrNotCancelable  = eris.New("Este alerta não pode mais ser cancelado")
)

const (
	defaultHold  = 2 * time.Second
	defaultRearm = 3 * time.Second
)

// Caller is the user acting on an alert.
type Caller struct {
	ID   string
	Name string
}

// Service triggers, cancels and reports SOS alerts.
type Service struct {
	store     store.Store
	notifiers []Notifier
	clock     clockwork.Clock
	metrics   *metrics.Metrics
	hold      time.Duration
	rearm     time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithNotifiers sets the delivery channels.
func WithNotifiers(n ...Notifier) Option {
	return func(s *Service) { s.notifiers = append(s.notifiers, n...) }
}

// WithClock sets the clock used for timestamps and the rearm window.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithMetrics records deliveries per channel.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTimings sets the minimum hold duration and the rearm delay.
func WithTimings(hold, rearm time.Duration) Option {
	return func(s *Service) {
		if hold > 0 {
			s.hold = hold
		}
		if rearm > 0 {
			s.rearm = rearm
		}
	}
}

// NewService creates an SOS Service.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store: st,
		clock: clockwork.NewRealClock(),
		hold:  defaultHold,
		rearm: defaultRearm,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetContact registers the user's emergency contact.
func (s *Service) SetContact(ctx context.Context, userID string, c model.Contact) (*model.Contact, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Email = strings.TrimSpace(c.Email)
	if c.Name == "" || c.Phone == "" {
		return nil, ErrInvalidContact
	}
	if err := s.store.SaveContact(ctx, userID, c); err != nil {
		return nil, eris.Wrap(err, "sos: save contact")
	}
	return &c, nil
}

// Contact returns the user's emergency contact.
func (s *Service) Contact(ctx context.Context, userID string) (*model.Contact, error) {
	c, err := s.store.GetContact(ctx, userID)
	if eris.Is(err, store.ErrNotFound) {
		return nil, ErrNoContact
	}
	return c, eris.Wrap(err, "sos: get contact")
}

// Trigger persists a sent alert and fans it out to every notifier. Notifier
// failures are recorded on the alert; the alert stays sent.
func (s *Service) Trigger(ctx context.Context, caller Caller, lat, lng float64, hold time.Duration) (*model.Alert, error) {
	if hold < s.hold {
		return nil, ErrHoldTooShort
	}
	contact, err := s.Contact(ctx, caller.ID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	alert := &model.Alert{
		ID:        uuid.NewString(),
		UserID:    caller.ID,
		State:     model.AlertSent,
		Message:   Message(caller.Name, lat, lng),
		Lat:       lat,
		Lng:       lng,
		Contact:   *contact,
		CreatedAt: now,
	}
	if err := s.store.CreateAlert(ctx, alert); err != nil {
		return nil, eris.Wrap(err, "sos: create alert")
	}
	zap.L().Warn("sos: alert triggered",
		zap.String("alert_id", alert.ID),
		zap.String("user_id", caller.ID),
	)

	failures := s.fanOut(ctx, Event{
		AlertID:   alert.ID,
		UserID:    caller.ID,
		UserName:  caller.Name,
		Message:   alert.Message,
		Lat:       lat,
		Lng:       lng,
		MapURL:    mapURL(lat, lng),
		Contact:   *contact,
		Timestamp: now,
	})
	if len(failures) > 0 {
		alert.Failures = failures
		if err := s.store.UpdateAlert(ctx, alert); err != nil {
			zap.L().Error("sos: record delivery failures", zap.String("alert_id", alert.ID), zap.Error(err))
		}
	}
	return alert, nil
}

func (s *Service) fanOut(ctx context.Context, ev Event) []string {
	var (
		mu       sync.Mutex
		failures []string
		g        errgroup.Group
	)
	for _, n := range s.notifiers {
		g.Go(func() error {
			err := n.Notify(ctx, ev)
			s.metrics.ObserveSOS(n.Name(), err)
			if err != nil {
				zap.L().Error("sos: notifier failed",
					zap.String("channel", n.Name()),
					zap.String("alert_id", ev.AlertID),
					zap.Error(err),
				)
				mu.Lock()
				failures = append(failures, n.Name()+": "+err.Error())
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return failures
}

// Cancel moves a sent alert to canceled. Only the owner may cancel.
func (s *Service) Cancel(ctx context.Context, alertID string, caller Caller) (*model.Alert, error) {
	a, err := s.load(ctx, alertID, caller)
	if err != nil {
		return nil, err
	}
	if a.State != model.AlertSent {
		return nil, ErrNotCancelable
	}
	now := s.clock.Now().UTC()
	a.State = model.AlertCanceled
	a.CanceledAt = &now
	if err := s.store.UpdateAlert(ctx, a); err != nil {
		return nil, eris.Wrap(err, "sos: cancel alert")
	}
	zap.L().Info("sos: alert canceled", zap.String("alert_id", a.ID))
	return a, nil
}

// Status returns the alert with its effective state: a canceled alert
// reads as ready once the rearm delay has passed.
func (s *Service) Status(ctx context.Context, alertID string, caller Caller) (*model.Alert, error) {
	a, err := s.load(ctx, alertID, caller)
	if err != nil {
		return nil, err
	}
	if a.State == model.AlertCanceled && a.CanceledAt != nil && s.clock.Since(*a.CanceledAt) >= s.rearm {
		a.State = model.AlertReady
	}
	return a, nil
}

func (s *Service) load(ctx context.Context, alertID string, caller Caller) (*model.Alert, error) {
	a, err := s.store.GetAlert(ctx, alertID)
	if eris.Is(err, store.ErrNotFound) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sos: load alert")
	}
	if a.UserID != caller.ID {
		return nil, ErrAlertNotFound
	}
	return a, nil
}

// Message is the help text sent to the emergency contact.
func Message(name string, lat, lng float64) string {
	return fmt.Sprintf("SOS! %s precisa de ajuda. Localização: %.6f,%.6f %s", name, lat, lng, mapURL(lat, lng))
}

func mapURL(lat, lng float64) string {
	return fmt.Sprintf("https://www.openstreetmap.org/?mlat=%.6f&mlon=%.6f", lat, lng)
}
