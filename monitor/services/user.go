package services

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"mcs_platform/monitor/auth"
	"mcs_platform/monitor/schema"
	"mcs_platform/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *UserService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/signup", s.Signup)

	r.Group(func(r chi.Router) {
		// Login attempts are limited per source address.
		r.Use(httprate.LimitByIP(10, time.Minute))
		r.Post("/login", s.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/", s.List)
		r.Get("/{user_id}", s.Get)
		r.Get("/{user_id}/permissions", s.ListUserPermissions)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequirePermission(s.db, auth.PermManageUsers))

			r.Put("/{user_id}", s.Update)
			r.Delete("/{user_id}", s.Delete)

			r.Get("/{user_id}/roles", s.ListUserRoles)
			r.Post("/{user_id}/roles", s.AssignRole)
			r.Delete("/{user_id}/roles/{role_id}", s.RevokeRole)

			r.Get("/roles", s.ListRoles)
			r.Post("/roles", s.CreateRole)
			r.Delete("/roles/{role_id}", s.DeleteRole)
			r.Post("/roles/{role_id}/permissions", s.GrantPermission)

			r.Get("/permissions", s.ListPermissions)
			r.Post("/permissions", s.CreatePermission)
		})
	})

	return r
}

type signupRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Email     string `json:"email" validate:"required,email,max=100"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
}

func (s *UserService) Signup(w http.ResponseWriter, r *http.Request) {
	var params signupRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	userId, err := s.userAuth.CreateUser(auth.NewUser{
		Username:  params.Username,
		Email:     params.Email,
		Password:  params.Password,
		FirstName: params.FirstName,
		LastName:  params.LastName,
	})
	if err != nil {
		if errors.Is(err, auth.ErrUsernameAlreadyInUse) || errors.Is(err, auth.ErrEmailAlreadyInUse) {
			http.Error(w, err.Error(), http.StatusConflict)
		} else {
			slog.Error("error creating user", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	user, err := schema.GetUser(userId, s.db)
	if err != nil {
		err = notFoundOrInternal(err, schema.ErrUserNotFound)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteCreated(w, user)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	UserId      uuid.UUID `json:"user_id"`
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
}

func (s *UserService) Login(w http.ResponseWriter, r *http.Request) {
	var params loginRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	result, err := s.userAuth.Login(params.Username, params.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		} else {
			slog.Error("error during login", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	utils.WriteJsonResponse(w, loginResponse{
		UserId:      result.UserId,
		AccessToken: result.AccessToken,
		TokenType:   "bearer",
	})
}

func (s *UserService) List(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := utils.Paging(w, r)
	if !ok {
		return
	}

	var users []schema.User
	if result := s.db.Offset(skip).Limit(limit).Find(&users); result.Error != nil {
		slog.Error("sql error listing users", "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, users)
}

func (s *UserService) Get(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := schema.GetUser(userId, s.db)
	if err != nil {
		err = notFoundOrInternal(err, schema.ErrUserNotFound)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, user)
}

type updateUserRequest struct {
	Email     *string `json:"email" validate:"omitempty,email,max=100"`
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
	Status    *string `json:"status" validate:"omitempty,oneof=Active Inactive Suspended"`
}

func (s *UserService) Update(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateUserRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	var user schema.User
	err = s.db.Transaction(func(txn *gorm.DB) error {
		user, err = schema.GetUser(userId, txn)
		if err != nil {
			return notFoundOrInternal(err, schema.ErrUserNotFound)
		}

		if params.Email != nil && *params.Email != user.Email {
			var count int64
			result := txn.Model(&schema.User{}).Where("email = ?", *params.Email).Count(&count)
			if result.Error != nil {
				slog.Error("sql error checking email uniqueness", "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
			if count > 0 {
				return CodedError(auth.ErrEmailAlreadyInUse, http.StatusConflict)
			}
			user.Email = *params.Email
		}
		if params.FirstName != nil {
			user.FirstName = *params.FirstName
		}
		if params.LastName != nil {
			user.LastName = *params.LastName
		}
		if params.Status != nil {
			user.Status = *params.Status
		}

		if result := txn.Save(&user); result.Error != nil {
			slog.Error("sql error updating user", "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, user)
}

// Delete deactivates the account rather than removing the row so that past
// executions keep their attribution.
func (s *UserService) Delete(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		user, err := schema.GetUser(userId, txn)
		if err != nil {
			return notFoundOrInternal(err, schema.ErrUserNotFound)
		}

		user.Status = schema.UserInactive

		if result := txn.Save(&user); result.Error != nil {
			slog.Error("sql error deactivating user", "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteNoContent(w)
}

func (s *UserService) ListUserRoles(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := checkUserExists(s.db, userId); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var roles []schema.Role
	result := s.db.
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userId).
		Find(&roles)
	if result.Error != nil {
		slog.Error("sql error listing user roles", "user_id", userId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, roles)
}

func (s *UserService) ListUserPermissions(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := checkUserExists(s.db, userId); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	permissions, err := schema.GetUserPermissions(userId, s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, permissions)
}

type assignRoleRequest struct {
	RoleId uuid.UUID `json:"role_id" validate:"required"`
}

func (s *UserService) AssignRole(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params assignRoleRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkUserExists(txn, userId); err != nil {
			return err
		}
		if _, err := schema.GetRole(params.RoleId, txn); err != nil {
			return notFoundOrInternal(err, schema.ErrRoleNotFound)
		}

		assignment := schema.UserRole{UserId: userId, RoleId: params.RoleId}
		result := txn.Where(&assignment).FirstOrCreate(&assignment)
		if result.Error != nil {
			slog.Error("sql error assigning role", "user_id", userId, "role_id", params.RoleId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *UserService) RevokeRole(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	roleId, err := utils.URLParamUUID(r, "role_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := s.db.Where("user_id = ? AND role_id = ?", userId, roleId).Delete(&schema.UserRole{})
	if result.Error != nil {
		slog.Error("sql error revoking role", "user_id", userId, "role_id", roleId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteNoContent(w)
}

type createRoleRequest struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description" validate:"omitempty,max=255"`
}

func (s *UserService) CreateRole(w http.ResponseWriter, r *http.Request) {
	var params createRoleRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	role := schema.Role{
		Id:          uuid.New(),
		Name:        params.Name,
		Description: params.Description,
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		var count int64
		result := txn.Model(&schema.Role{}).Where("name = ?", params.Name).Count(&count)
		if result.Error != nil {
			slog.Error("sql error checking role uniqueness", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if count > 0 {
			return CodedError(errors.New("role name is already in use"), http.StatusConflict)
		}

		if result := txn.Create(&role); result.Error != nil {
			slog.Error("sql error creating role", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteCreated(w, role)
}

func (s *UserService) ListRoles(w http.ResponseWriter, r *http.Request) {
	var roles []schema.Role
	if result := s.db.Find(&roles); result.Error != nil {
		slog.Error("sql error listing roles", "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, roles)
}

func (s *UserService) DeleteRole(w http.ResponseWriter, r *http.Request) {
	roleId, err := utils.URLParamUUID(r, "role_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetRole(roleId, txn); err != nil {
			return notFoundOrInternal(err, schema.ErrRoleNotFound)
		}

		if result := txn.Where("role_id = ?", roleId).Delete(&schema.UserRole{}); result.Error != nil {
			slog.Error("sql error removing role assignments", "role_id", roleId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result := txn.Where("role_id = ?", roleId).Delete(&schema.RolePermission{}); result.Error != nil {
			slog.Error("sql error removing role permissions", "role_id", roleId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result := txn.Delete(&schema.Role{Id: roleId}); result.Error != nil {
			slog.Error("sql error deleting role", "role_id", roleId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteNoContent(w)
}

type grantPermissionRequest struct {
	PermissionId uuid.UUID `json:"permission_id" validate:"required"`
}

func (s *UserService) GrantPermission(w http.ResponseWriter, r *http.Request) {
	roleId, err := utils.URLParamUUID(r, "role_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params grantPermissionRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetRole(roleId, txn); err != nil {
			return notFoundOrInternal(err, schema.ErrRoleNotFound)
		}
		if _, err := schema.GetPermission(params.PermissionId, txn); err != nil {
			return notFoundOrInternal(err, schema.ErrPermissionNotFound)
		}

		grant := schema.RolePermission{RoleId: roleId, PermissionId: params.PermissionId}
		result := txn.Where(&grant).FirstOrCreate(&grant)
		if result.Error != nil {
			slog.Error("sql error granting permission", "role_id", roleId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type createPermissionRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"omitempty,max=255"`
}

func (s *UserService) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var params createPermissionRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	permission := schema.Permission{
		Id:          uuid.New(),
		Name:        params.Name,
		Description: params.Description,
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		var count int64
		result := txn.Model(&schema.Permission{}).Where("name = ?", params.Name).Count(&count)
		if result.Error != nil {
			slog.Error("sql error checking permission uniqueness", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if count > 0 {
			return CodedError(errors.New("permission name is already in use"), http.StatusConflict)
		}

		if result := txn.Create(&permission); result.Error != nil {
			slog.Error("sql error creating permission", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteCreated(w, permission)
}

func (s *UserService) ListPermissions(w http.ResponseWriter, r *http.Request) {
	var permissions []schema.Permission
	if result := s.db.Find(&permissions); result.Error != nil {
		slog.Error("sql error listing permissions", "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, permissions)
}
