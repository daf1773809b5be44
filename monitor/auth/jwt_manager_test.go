package auth

import (
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
)

func TestCreateAndVerifyJwt(t *testing.T) {
	manager := NewJwtManager([]byte("test-secret"), time.Minute)

	token, err := manager.CreateUserJwt("alice")
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := jwtauth.VerifyToken(manager.auth, token)
	if err != nil {
		t.Fatal(err)
	}

	if decoded.Subject() != "alice" {
		t.Fatalf("wrong subject: %v", decoded.Subject())
	}
}

func TestExpiredJwtRejected(t *testing.T) {
	manager := NewJwtManager([]byte("test-secret"), -time.Minute)

	token, err := manager.CreateUserJwt("alice")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := jwtauth.VerifyToken(manager.auth, token); err == nil {
		t.Fatal("expired token should not verify")
	}
}

func TestJwtWrongSecretRejected(t *testing.T) {
	manager := NewJwtManager([]byte("test-secret"), time.Minute)
	other := NewJwtManager([]byte("other-secret"), time.Minute)

	token, err := manager.CreateUserJwt("alice")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := jwtauth.VerifyToken(other.auth, token); err == nil {
		t.Fatal("token signed with a different secret should not verify")
	}
}
