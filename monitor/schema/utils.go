package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrRoleNotFound          = errors.New("role not found")
	ErrPermissionNotFound    = errors.New("permission not found")
	ErrSiteNotFound          = errors.New("site not found")
	ErrZoneNotFound          = errors.New("zone not found")
	ErrCameraNotFound        = errors.New("camera not found")
	ErrMappingNotFound       = errors.New("camera mapping not found")
	ErrTemplateNotFound      = errors.New("template not found")
	ErrChecklistNotFound     = errors.New("checklist not found")
	ErrStepNotFound          = errors.New("checklist step not found")
	ErrExecutionNotFound     = errors.New("execution not found")
	ErrStepExecutionNotFound = errors.New("step execution not found")
	ErrEvidenceNotFound      = errors.New("evidence not found")
	ErrExceptionNotFound     = errors.New("exception not found")
	ErrAlertNotFound         = errors.New("alert not found")
	ErrReportNotFound        = errors.New("report not found")
	ErrDbAccessFailed        = errors.New("db access failed")
)

func getById[T any](id uuid.UUID, db *gorm.DB, notFound error, entity string) (T, error) {
	var value T

	result := db.First(&value, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return value, notFound
		}
		slog.Error("sql error in get "+entity, "id", id, "error", result.Error)
		return value, ErrDbAccessFailed
	}

	return value, nil
}

func GetUser(userId uuid.UUID, db *gorm.DB) (User, error) {
	return getById[User](userId, db, ErrUserNotFound, "user")
}

func GetUserByUsername(username string, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "username = ?", username)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user by username", "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetRole(roleId uuid.UUID, db *gorm.DB) (Role, error) {
	return getById[Role](roleId, db, ErrRoleNotFound, "role")
}

func GetPermission(permissionId uuid.UUID, db *gorm.DB) (Permission, error) {
	return getById[Permission](permissionId, db, ErrPermissionNotFound, "permission")
}

func GetSite(siteId uuid.UUID, db *gorm.DB) (Site, error) {
	return getById[Site](siteId, db, ErrSiteNotFound, "site")
}

func GetZone(zoneId uuid.UUID, db *gorm.DB) (Zone, error) {
	return getById[Zone](zoneId, db, ErrZoneNotFound, "zone")
}

func GetCamera(cameraId uuid.UUID, db *gorm.DB) (Camera, error) {
	return getById[Camera](cameraId, db, ErrCameraNotFound, "camera")
}

func GetMapping(mappingId uuid.UUID, db *gorm.DB) (CameraMapping, error) {
	return getById[CameraMapping](mappingId, db, ErrMappingNotFound, "camera mapping")
}

func GetTemplate(templateId uuid.UUID, db *gorm.DB) (ChecklistTemplate, error) {
	return getById[ChecklistTemplate](templateId, db, ErrTemplateNotFound, "template")
}

func GetChecklist(checklistId uuid.UUID, db *gorm.DB) (Checklist, error) {
	return getById[Checklist](checklistId, db, ErrChecklistNotFound, "checklist")
}

func GetStep(stepId uuid.UUID, db *gorm.DB) (ChecklistStep, error) {
	return getById[ChecklistStep](stepId, db, ErrStepNotFound, "checklist step")
}

func GetExecution(executionId uuid.UUID, db *gorm.DB) (Execution, error) {
	return getById[Execution](executionId, db, ErrExecutionNotFound, "execution")
}

func GetStepExecution(stepExecutionId uuid.UUID, db *gorm.DB) (StepExecution, error) {
	return getById[StepExecution](stepExecutionId, db, ErrStepExecutionNotFound, "step execution")
}

func GetEvidence(evidenceId uuid.UUID, db *gorm.DB) (Evidence, error) {
	return getById[Evidence](evidenceId, db, ErrEvidenceNotFound, "evidence")
}

func GetException(exceptionId uuid.UUID, db *gorm.DB) (Exception, error) {
	return getById[Exception](exceptionId, db, ErrExceptionNotFound, "exception")
}

func GetAlert(alertId uuid.UUID, db *gorm.DB) (Alert, error) {
	return getById[Alert](alertId, db, ErrAlertNotFound, "alert")
}

func GetReport(reportId uuid.UUID, db *gorm.DB) (Report, error) {
	return getById[Report](reportId, db, ErrReportNotFound, "report")
}

// GetUserPermissions returns the union of the permissions granted by all of
// the user's roles.
func GetUserPermissions(userId uuid.UUID, db *gorm.DB) ([]Permission, error) {
	var permissions []Permission
	result := db.
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN user_roles ON user_roles.role_id = role_permissions.role_id").
		Where("user_roles.user_id = ?", userId).
		Distinct().
		Find(&permissions)
	if result.Error != nil {
		slog.Error("sql error in get user permissions", "user_id", userId, "error", result.Error)
		return nil, ErrDbAccessFailed
	}
	return permissions, nil
}
