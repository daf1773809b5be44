package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
)

type JwtManager struct {
	auth       *jwtauth.JWTAuth
	expiration time.Duration
}

func NewJwtManager(secret []byte, expiration time.Duration) *JwtManager {
	return &JwtManager{auth: jwtauth.New("HS256", secret, nil), expiration: expiration}
}

func (m *JwtManager) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verifier(m.auth)
}

// Authenticator rejects missing, malformed, expired, or tampered tokens with a
// generic 401. No distinction between the failure modes is exposed.
func (m *JwtManager) Authenticator() func(http.Handler) http.Handler {
	return jwtauth.Authenticator(m.auth)
}

// CreateUserJwt issues a token with the username as subject.
func (m *JwtManager) CreateUserJwt(username string) (string, error) {
	claims := map[string]interface{}{
		"sub": username,
		"exp": time.Now().Add(m.expiration),
	}
	_, token, err := m.auth.Encode(claims)
	if err != nil {
		slog.Error("error generating jwt", "error", err)
		return "", fmt.Errorf("error generating access token: %w", err)
	}
	return token, nil
}

func SubjectFromContext(r *http.Request) (string, error) {
	token, _, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return "", fmt.Errorf("error retrieving auth claims: %w", err)
	}

	subject := token.Subject()
	if subject == "" {
		return "", fmt.Errorf("invalid token: missing subject claim")
	}

	return subject, nil
}
