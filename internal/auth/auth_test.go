package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navis-app/navis-api/internal/model"
	"github.com/navis-app/navis-api/internal/store"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestService(t *testing.T) (*Service, *clockwork.FakeClock) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	return NewService(st, testSecret, 24*time.Hour, WithClock(clock)), clock
}

func TestLogin_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"missing email", "", "segredo", ErrMissingCredentials},
		{"missing password", "ana@navis.com", "", ErrMissingCredentials},
		{"bad email", "ana@navis", "segredo", ErrInvalidEmail},
		{"email with space", "ana @navis.com", "segredo", ErrInvalidEmail},
		{"short password", "ana@navis.com", "12345", ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLogin_CreatesThenReusesUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Login(ctx, "ana@navis.com", "segredo")
	require.NoError(t, err)
	assert.Equal(t, "Login realizado com sucesso!", first.Message)
	assert.Equal(t, "Usuário NAVIS", first.User.Name)
	assert.Equal(t, model.RoleUser, first.User.Role)
	assert.Equal(t, model.PlanStart, first.User.Plan)
	assert.NotEmpty(t, first.Token)

	second, err := svc.Login(ctx, "ana@navis.com", "outrasenha")
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)
}

func TestLoginSocial(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.LoginSocial(ctx, "google")
	require.NoError(t, err)
	assert.Equal(t, "user@google.com", sess.User.Email)
	assert.Equal(t, "Usuário Google", sess.User.Name)
	assert.Equal(t, "Login com google realizado com sucesso!", sess.Message)

	sess, err = svc.LoginSocial(ctx, "GitHub")
	require.NoError(t, err)
	assert.Equal(t, "user@github.com", sess.User.Email)

	_, err = svc.LoginSocial(ctx, "myspace")
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestRegister(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, " ", "ana@navis.com", "segredo")
	assert.ErrorIs(t, err, ErrMissingFields)
	_, err = svc.Register(ctx, "Ana", "ana", "segredo")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = svc.Register(ctx, "Ana", "ana@navis.com", "123")
	assert.ErrorIs(t, err, ErrWeakPassword)

	sess, err := svc.Register(ctx, "Ana Souza", "ana@navis.com", "segredo")
	require.NoError(t, err)
	assert.Equal(t, "Conta criada com sucesso!", sess.Message)
	assert.Equal(t, "Ana Souza", sess.User.Name)

	_, err = svc.Register(ctx, "Outra Ana", "ana@navis.com", "segredo")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestForgotPassword(t *testing.T) {
	svc, _ := newTestService(t)

	msg, err := svc.ForgotPassword(context.Background(), "ana@navis.com")
	require.NoError(t, err)
	assert.Equal(t, "Email de recuperação enviado!", msg)

	_, err = svc.ForgotPassword(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestToken_ClaimsAndExpiry(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Login(ctx, "ana@navis.com", "segredo")
	require.NoError(t, err)

	claims, err := svc.Validate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, claims.UserID)
	assert.Equal(t, "ana@navis.com", claims.Email)
	assert.Equal(t, 24*time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
	assert.NoError(t, uuid.Validate(claims.ID))

	u, err := svc.CheckAuth(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, u.ID)

	clock.Advance(24 * time.Hour)
	_, err = svc.Validate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestToken_Malformed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, tok := range []string{"", "not base64!", "bnVsbA", "e30", "a.b.c"} {
		_, err := svc.Validate(ctx, tok)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Login(ctx, "ana@navis.com", "segredo")
	require.NoError(t, err)
	other, err := svc.LoginSocial(ctx, "github")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, sess.Token))

	_, err = svc.CheckAuth(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, svc.Logout(ctx, sess.Token), ErrInvalidToken)

	_, err = svc.CheckAuth(ctx, other.Token)
	assert.NoError(t, err)
}

func signClaims(t *testing.T, method jwt.SigningMethod, key any, c Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, c).SignedString(key)
	require.NoError(t, err)
	return tok
}

func TestToken_Forged(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Login(ctx, "ana@navis.com", "segredo")
	require.NoError(t, err)

	claims := Claims{
		UserID: sess.User.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
		},
	}

	raw, err := json.Marshal(map[string]any{"userId": sess.User.ID, "exp": clock.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"bare claims", base64.RawURLEncoding.EncodeToString(raw)},
		{"alg none", signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, claims)},
		{"wrong secret", signClaims(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-xx"), claims)},
		{"wrong algorithm", signClaims(t, jwt.SigningMethodHS512, testSecret, claims)},
		{"missing jti", signClaims(t, jwt.SigningMethodHS256, testSecret, Claims{
			UserID:           sess.User.ID,
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: claims.ExpiresAt},
		})},
		{"missing exp", signClaims(t, jwt.SigningMethodHS256, testSecret, Claims{
			UserID:           sess.User.ID,
			RegisteredClaims: jwt.RegisteredClaims{ID: uuid.NewString()},
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := svc.CheckAuth(ctx, tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, u)
		})
	}
}

func TestToken_Tampered(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	victim, err := svc.Register(ctx, "Ana", "ana@navis.com", "segredo")
	require.NoError(t, err)
	attacker, err := svc.Register(ctx, "Bia", "bia@navis.com", "segredo")
	require.NoError(t, err)

	parts := strings.Split(attacker.Token, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var claims map[string]any
	require.NoError(t, json.Unmarshal(payload, &claims))
	claims["userId"] = victim.User.ID
	claims["sub"] = victim.User.ID
	payload, err = json.Marshal(claims)
	require.NoError(t, err)
	parts[1] = base64.RawURLEncoding.EncodeToString(payload)

	_, err = svc.CheckAuth(ctx, strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrInvalidToken)

	u, err := svc.CheckAuth(ctx, attacker.Token)
	require.NoError(t, err)
	assert.Equal(t, attacker.User.ID, u.ID)
}

func TestLogout_RevokedTokenVariants(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Login(ctx, "ana@navis.com", "segredo")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, sess.Token))

	for _, tok := range []string{sess.Token, sess.Token + " ", " " + sess.Token, sess.Token + "\n"} {
		_, err := svc.CheckAuth(ctx, tok)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}

	// A fresh login for the same user gets a new jti and stays valid.
	again, err := svc.Login(ctx, "ana@navis.com", "segredo")
	require.NoError(t, err)
	_, err = svc.CheckAuth(ctx, again.Token)
	assert.NoError(t, err)
}
