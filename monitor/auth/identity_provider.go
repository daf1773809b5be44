package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"mcs_platform/monitor/schema"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrInvalidCredentials covers unknown username, inactive account, and
	// password mismatch alike so that login failures cannot be used to
	// enumerate accounts.
	ErrInvalidCredentials   = errors.New("invalid login credentials")
	ErrGeneratingJwt        = errors.New("error generating access token")
	ErrEmailAlreadyInUse    = errors.New("email is already registered")
	ErrUsernameAlreadyInUse = errors.New("username is already registered")
)

type LoginResult struct {
	UserId      uuid.UUID
	AccessToken string
}

type NewUser struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type IdentityProvider interface {
	AuthMiddleware() chi.Middlewares

	Login(username, password string) (LoginResult, error)

	CreateUser(user NewUser) (uuid.UUID, error)
}

func addInitialAdminToDb(db *gorm.DB, username, email string, password []byte) error {
	user := schema.User{
		Id:        uuid.New(),
		Username:  username,
		Email:     email,
		Password:  password,
		FirstName: "System",
		LastName:  "Administrator",
		Status:    schema.UserActive,
	}

	err := db.Transaction(func(txn *gorm.DB) error {
		var existing schema.User
		result := txn.Limit(1).Find(&existing, "username = ? or email = ?", username, email)
		if result.Error != nil {
			slog.Error("sql error checking if admin has already been added", "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		if result.RowsAffected == 0 {
			if result := txn.Create(&user); result.Error != nil {
				slog.Error("sql error creating initial admin user", "error", result.Error)
				return schema.ErrDbAccessFailed
			}
			if err := grantAdminRole(txn, user.Id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error adding initial admin to db: %w", err)
	}

	return nil
}

// grantAdminRole ensures an "admin" role holding every built in permission
// exists and assigns it to the given user.
func grantAdminRole(txn *gorm.DB, userId uuid.UUID) error {
	var role schema.Role
	result := txn.Limit(1).Find(&role, "name = ?", "admin")
	if result.Error != nil {
		slog.Error("sql error looking up admin role", "error", result.Error)
		return schema.ErrDbAccessFailed
	}

	if result.RowsAffected == 0 {
		role = schema.Role{Id: uuid.New(), Name: "admin", Description: "Full administrative access"}
		if result := txn.Create(&role); result.Error != nil {
			slog.Error("sql error creating admin role", "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		for _, name := range []string{PermManageUsers, PermManageTopology, PermManageChecklists} {
			perm := schema.Permission{Id: uuid.New(), Name: name}
			if result := txn.Create(&perm); result.Error != nil {
				slog.Error("sql error creating permission", "permission", name, "error", result.Error)
				return schema.ErrDbAccessFailed
			}
			link := schema.RolePermission{RoleId: role.Id, PermissionId: perm.Id}
			if result := txn.Create(&link); result.Error != nil {
				slog.Error("sql error linking permission to admin role", "permission", name, "error", result.Error)
				return schema.ErrDbAccessFailed
			}
		}
	}

	assignment := schema.UserRole{UserId: userId, RoleId: role.Id}
	if result := txn.Create(&assignment); result.Error != nil {
		slog.Error("sql error assigning admin role", "user_id", userId, "error", result.Error)
		return schema.ErrDbAccessFailed
	}

	return nil
}

type requestContextKey string

const UserRequestContextKey requestContextKey = "user"

func UserFromContext(r *http.Request) (schema.User, error) {
	userUntyped := r.Context().Value(UserRequestContextKey)
	if userUntyped == nil {
		return schema.User{}, fmt.Errorf("user field not found in request context")
	}
	user, ok := userUntyped.(schema.User)
	if !ok {
		return schema.User{}, fmt.Errorf("invalid value for user field")
	}
	return user, nil
}
