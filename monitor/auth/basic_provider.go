package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"mcs_platform/monitor/schema"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BasicIdentityProvider struct {
	jwtManager *JwtManager
	db         *gorm.DB
	auditLog   AuditLogger
}

type BasicProviderArgs struct {
	Secret          []byte
	TokenExpiration time.Duration
	AdminUsername   string
	AdminEmail      string
	AdminPassword   string
}

func NewBasicIdentityProvider(db *gorm.DB, auditLog AuditLogger, args BasicProviderArgs) (IdentityProvider, error) {
	hashedPwd, err := HashPassword(args.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("error encrypting admin password: %w", err)
	}

	err = addInitialAdminToDb(db, args.AdminUsername, args.AdminEmail, hashedPwd)
	if err != nil {
		return nil, fmt.Errorf("error adding initial admin to db: %w", err)
	}

	expiration := args.TokenExpiration
	if expiration == 0 {
		expiration = 30 * time.Minute
	}

	return &BasicIdentityProvider{
		jwtManager: NewJwtManager(args.Secret, expiration),
		db:         db,
		auditLog:   auditLog,
	}, nil
}

// addUserToContext resolves the token subject to a user row. Any resolution
// failure, including a user that has since been soft deleted, yields the same
// generic 401 as a bad token.
func (auth *BasicIdentityProvider) addUserToContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := func(w http.ResponseWriter, r *http.Request) {
			username, err := SubjectFromContext(r)
			if err != nil {
				http.Error(w, "authentication failed", http.StatusUnauthorized)
				return
			}

			user, err := schema.GetUserByUsername(username, auth.db)
			if err != nil {
				if errors.Is(err, schema.ErrDbAccessFailed) {
					http.Error(w, err.Error(), http.StatusInternalServerError)
					return
				}
				http.Error(w, "authentication failed", http.StatusUnauthorized)
				return
			}

			if user.Status != schema.UserActive {
				http.Error(w, "authentication failed", http.StatusUnauthorized)
				return
			}

			reqCtx := context.WithValue(r.Context(), UserRequestContextKey, user)
			next.ServeHTTP(w, r.WithContext(reqCtx))
		}

		return http.HandlerFunc(handler)
	}
}

func (auth *BasicIdentityProvider) AuthMiddleware() chi.Middlewares {
	return chi.Middlewares{auth.jwtManager.Verifier(), auth.jwtManager.Authenticator(), auth.addUserToContext(), auth.auditLog.Middleware}
}

func (auth *BasicIdentityProvider) Login(username, password string) (LoginResult, error) {
	var user schema.User
	result := auth.db.First(&user, "username = ?", username)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		slog.Error("sql error looking up user by username", "error", result.Error)
		return LoginResult{}, schema.ErrDbAccessFailed
	}

	if user.Status != schema.UserActive {
		return LoginResult{}, ErrInvalidCredentials
	}

	if !VerifyPassword(password, user.Password) {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := auth.jwtManager.CreateUserJwt(user.Username)
	if err != nil {
		return LoginResult{}, ErrGeneratingJwt
	}

	return LoginResult{UserId: user.Id, AccessToken: token}, nil
}

func (auth *BasicIdentityProvider) CreateUser(newUser NewUser) (uuid.UUID, error) {
	hashedPwd, err := HashPassword(newUser.Password)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("error encrypting password: %w", err)
	}

	user := schema.User{
		Id:        uuid.New(),
		Username:  newUser.Username,
		Email:     newUser.Email,
		Password:  hashedPwd,
		FirstName: newUser.FirstName,
		LastName:  newUser.LastName,
		Status:    schema.UserActive,
	}

	err = auth.db.Transaction(func(txn *gorm.DB) error {
		var existing schema.User
		result := txn.Limit(1).Find(&existing, "username = ? or email = ?", newUser.Username, newUser.Email)
		if result.Error != nil {
			slog.Error("sql error checking for existing username/email", "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		if result.RowsAffected != 0 {
			if existing.Username == newUser.Username {
				return ErrUsernameAlreadyInUse
			}
			return ErrEmailAlreadyInUse
		}

		if result := txn.Create(&user); result.Error != nil {
			slog.Error("sql error creating new user entry", "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		return nil
	})

	if err != nil {
		return uuid.UUID{}, fmt.Errorf("error creating new user: %w", err)
	}

	return user.Id, nil
}
