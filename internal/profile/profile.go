// Package profile validates and stores edits to a user's profile.
package profile

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"

	"github.com/navis-app/navis-api/internal/auth"
	"github.com/navis-app/navis-api/internal/model"
	"github.com/navis-app/navis-api/internal/store"
)

// MaxBioLength is the longest bio accepted, in characters.
const MaxBioLength = 500

var (
	ErrNameRequired = eris.New("O nome é obrigatório")
	ErrInvalidEmail = eris.New("Email inválido")
	ErrInvalidCPF   = eris.New("CPF deve ter 11 dígitos")
	ErrInvalidPhone = eris.New("Telefone deve ter 10 ou 11 dígitos")
	ErrBioTooLong   = eris.New("A bio pode ter no máximo 500 caracteres")
	ErrEmailTaken   = eris.New("Email já cadastrado")
)

// Update is a full profile edit.
type Update struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	CPF       string `json:"cpf"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatar"`
}

// Service reads and edits profiles.
type Service struct {
	store store.Store
	clock clockwork.Clock
}

// NewService creates a profile Service.
func NewService(st store.Store, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{store: st, clock: clock}
}

// Get loads a user's profile.
func (s *Service) Get(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	return u, eris.Wrap(err, "profile: get")
}

// Update validates upd and applies it to the user. CPF and phone are stored
// as digits only.
func (s *Service) Update(ctx context.Context, userID string, upd Update) (*model.User, error) {
	clean, err := Validate(upd)
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, eris.Wrap(err, "profile: load user")
	}

	u.Name = clean.Name
	u.Email = clean.Email
	u.Phone = clean.Phone
	u.CPF = clean.CPF
	u.Bio = clean.Bio
	u.AvatarURL = clean.AvatarURL
	u.UpdatedAt = s.clock.Now().UTC()

	if err := s.store.UpdateUser(ctx, u); err != nil {
		if eris.Is(err, store.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, eris.Wrap(err, "profile: update")
	}
	return u, nil
}

// Validate checks an update and returns it normalized.
func Validate(upd Update) (Update, error) {
	upd.Name = strings.TrimSpace(upd.Name)
	upd.Email = strings.TrimSpace(upd.Email)
	upd.Bio = strings.TrimSpace(upd.Bio)
	upd.AvatarURL = strings.TrimSpace(upd.AvatarURL)

	if upd.Name == "" {
		return Update{}, ErrNameRequired
	}
	if !auth.ValidEmail(upd.Email) {
		return Update{}, ErrInvalidEmail
	}
	if upd.CPF = digits(upd.CPF); upd.CPF != "" && len(upd.CPF) != 11 {
		return Update{}, ErrInvalidCPF
	}
	if upd.Phone = digits(upd.Phone); upd.Phone != "" && (len(upd.Phone) < 10 || len(upd.Phone) > 11) {
		return Update{}, ErrInvalidPhone
	}
	if utf8.RuneCountInString(upd.Bio) > MaxBioLength {
		return Update{}, ErrBioTooLong
	}
	return upd, nil
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
