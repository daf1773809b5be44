package auth

import (
	"fmt"
	"net/http"

	"mcs_platform/monitor/schema"

	"gorm.io/gorm"
)

// Well known permission names assigned through roles. A user's effective set
// is the union over all of their roles.
const (
	PermManageUsers      = "manage_users"
	PermManageTopology   = "manage_topology"
	PermManageChecklists = "manage_checklists"
)

func userHasPermission(userId interface{}, name string, db *gorm.DB) (bool, error) {
	var count int64
	result := db.Model(&schema.Permission{}).
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN user_roles ON user_roles.role_id = role_permissions.role_id").
		Where("user_roles.user_id = ? AND permissions.name = ?", userId, name).
		Count(&count)
	if result.Error != nil {
		return false, schema.ErrDbAccessFailed
	}
	return count > 0, nil
}

// RequirePermission gates an endpoint on a named permission. A user with no
// roles granting it gets a 403, the check never falls open on store errors.
func RequirePermission(db *gorm.DB, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			ok, err := userHasPermission(user.Id, name, db)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !ok {
				http.Error(w, fmt.Sprintf("user %v does not have the %v permission", user.Id, name), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}
