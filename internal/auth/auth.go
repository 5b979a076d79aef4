// Package auth implements the account flows: email login, social login,
// registration, password recovery and bearer-token sessions.
//
// Passwords are validated for shape only and never stored. Tokens are
// HS256-signed JWTs carrying a random jti; logout revokes the jti.
package auth

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/navis-app/navis-api/internal/model"
	"github.com/navis-app/navis-api/internal/store"
)

// User-facing errors. Their messages are returned to clients verbatim.
var (
	ErrMissingCredentials  = eris.New("Email e senha são obrigatórios")
	ErrMissingFields       = eris.New("Todos os campos são obrigatórios")
	ErrInvalidEmail        = eris.New("Email inválido")
	ErrWeakPassword        = eris.New("Senha deve ter pelo menos 6 caracteres")
	ErrEmailTaken          = eris.New("Email já cadastrado")
	ErrUnsupportedProvider = eris.New("Provedor de login não suportado")
	ErrInvalidToken        = eris.New("Sessão inválida ou expirada")
)

const (
	defaultName       = "Usuário NAVIS"
	minPasswordLength = 6
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// Claims is the token payload. RegisteredClaims.ID is the revocation key.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Session is the result of a successful login or registration.
type Session struct {
	Token   string      `json:"token"`
	User    *model.User `json:"user"`
	Message string      `json:"message"`
}

// Service issues and validates sessions.
type Service struct {
	store  store.Store
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for token timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService creates an auth Service. secret signs tokens and ttl is
// their lifetime.
func NewService(st store.Store, secret []byte, ttl time.Duration, opts ...Option) *Service {
	s := &Service{store: st, secret: secret, ttl: ttl, clock: clockwork.NewRealClock()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Login signs in by email, creating the account on first use.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if err := checkCredentials(email, password); err != nil {
		return nil, err
	}

	u, err := s.upsertUser(ctx, email, defaultName)
	if err != nil {
		return nil, err
	}
	return s.issue(u, "Login realizado com sucesso!")
}

// LoginSocial signs in through a supported identity provider.
func (s *Service) LoginSocial(ctx context.Context, provider string) (*Session, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	var display string
	switch provider {
	case "google":
		display = "Google"
	case "github":
		display = "GitHub"
	default:
		return nil, ErrUnsupportedProvider
	}

	u, err := s.upsertUser(ctx, "user@"+provider+".com", "Usuário "+display)
	if err != nil {
		return nil, err
	}
	return s.issue(u, "Login com "+provider+" realizado com sucesso!")
}

// Register creates a new account.
func (s *Service) Register(ctx context.Context, name, email, password string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if err := checkCredentials(email, password); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	u := &model.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      model.RoleUser,
		Plan:      model.PlanStart,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if eris.Is(err, store.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, eris.Wrap(err, "auth: register")
	}
	zap.L().Info("auth: user registered", zap.String("user_id", u.ID))
	return s.issue(u, "Conta criada com sucesso!")
}

// ForgotPassword validates the address and acknowledges the request.
func (s *Service) ForgotPassword(_ context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || !ValidEmail(email) {
		return "", ErrInvalidEmail
	}
	return "Email de recuperação enviado!", nil
}

// Validate verifies a token's signature and checks expiry and revocation.
func (s *Service) Validate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.store.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return nil, eris.Wrap(err, "auth: check revocation")
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// CheckAuth validates a token and loads its user.
func (s *Service) CheckAuth(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetUser(ctx, claims.UserID)
	if eris.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, eris.Wrap(err, "auth: load user")
	}
	return u, nil
}

// Logout revokes a token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.Validate(ctx, token)
	if err != nil {
		return err
	}
	return eris.Wrap(s.store.RevokeToken(ctx, claims.ID, claims.ExpiresAt.Time), "auth: logout")
}

func (s *Service) upsertUser(ctx context.Context, email, name string) (*model.User, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !eris.Is(err, store.ErrNotFound) {
		return nil, eris.Wrap(err, "auth: lookup user")
	}

	now := s.clock.Now().UTC()
	u = &model.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      model.RoleUser,
		Plan:      model.PlanStart,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, eris.Wrap(err, "auth: create user")
	}
	return u, nil
}

func (s *Service) issue(u *model.User, message string) (*Session, error) {
	now := s.clock.Now()
	claims := Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, eris.Wrap(err, "auth: sign token")
	}
	return &Session{Token: token, User: u, Message: message}, nil
}

func (s *Service) parse(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		zap.L().Debug("auth: rejected token", zap.Error(err))
		return nil, ErrInvalidToken
	}
	if claims.ID == "" || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func checkCredentials(email, password string) error {
	if !ValidEmail(email) {
		return ErrInvalidEmail
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
