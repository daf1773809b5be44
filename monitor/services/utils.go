package services

import (
	"errors"
	"log/slog"
	"net/http"

	"mcs_platform/monitor/schema"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrStepNotInChecklist = errors.New("step does not belong to the checklist under execution")

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

// notFoundOrInternal maps the schema sentinel errors onto response codes,
// anything that is not a known not-found error is treated as a store failure.
func notFoundOrInternal(err error, notFound error) error {
	if errors.Is(err, notFound) {
		return CodedError(err, http.StatusNotFound)
	}
	return CodedError(err, http.StatusInternalServerError)
}

func checkSiteExists(txn *gorm.DB, siteId uuid.UUID) error {
	if _, err := schema.GetSite(siteId, txn); err != nil {
		return notFoundOrInternal(err, schema.ErrSiteNotFound)
	}
	return nil
}

func checkZoneExists(txn *gorm.DB, zoneId uuid.UUID) error {
	if _, err := schema.GetZone(zoneId, txn); err != nil {
		return notFoundOrInternal(err, schema.ErrZoneNotFound)
	}
	return nil
}

func checkCameraExists(txn *gorm.DB, cameraId uuid.UUID) error {
	if _, err := schema.GetCamera(cameraId, txn); err != nil {
		return notFoundOrInternal(err, schema.ErrCameraNotFound)
	}
	return nil
}

func checkChecklistExists(txn *gorm.DB, checklistId uuid.UUID) error {
	if _, err := schema.GetChecklist(checklistId, txn); err != nil {
		return notFoundOrInternal(err, schema.ErrChecklistNotFound)
	}
	return nil
}

func checkUserExists(txn *gorm.DB, userId uuid.UUID) error {
	if _, err := schema.GetUser(userId, txn); err != nil {
		return notFoundOrInternal(err, schema.ErrUserNotFound)
	}
	return nil
}

func collectIds[T any](txn *gorm.DB, column string, parents []uuid.UUID) ([]uuid.UUID, error) {
	if len(parents) == 0 {
		return nil, nil
	}

	var ids []uuid.UUID
	var model T
	result := txn.Model(&model).Where(column+" IN ?", parents).Pluck("id", &ids)
	if result.Error != nil {
		slog.Error("sql error collecting child ids", "column", column, "error", result.Error)
		return nil, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	return ids, nil
}

func deleteWhere[T any](txn *gorm.DB, column string, parents []uuid.UUID) error {
	if len(parents) == 0 {
		return nil
	}

	var model T
	result := txn.Where(column+" IN ?", parents).Delete(&model)
	if result.Error != nil {
		slog.Error("sql error deleting child rows", "column", column, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	return nil
}

// The delete*Tree routines spell out the ownership tree instead of leaning on
// database level cascades, so subtree removal behaves identically on every
// supported store. All of them expect to run inside a transaction.

func deleteCameraTree(txn *gorm.DB, cameraIds []uuid.UUID) error {
	if err := deleteWhere[schema.CameraMapping](txn, "camera_id", cameraIds); err != nil {
		return err
	}
	return deleteWhere[schema.Camera](txn, "id", cameraIds)
}

func deleteZoneTree(txn *gorm.DB, zoneIds []uuid.UUID) error {
	cameraIds, err := collectIds[schema.Camera](txn, "zone_id", zoneIds)
	if err != nil {
		return err
	}
	if err := deleteCameraTree(txn, cameraIds); err != nil {
		return err
	}
	return deleteWhere[schema.Zone](txn, "id", zoneIds)
}

func deleteSiteTree(txn *gorm.DB, siteId uuid.UUID) error {
	zoneIds, err := collectIds[schema.Zone](txn, "site_id", []uuid.UUID{siteId})
	if err != nil {
		return err
	}
	if err := deleteZoneTree(txn, zoneIds); err != nil {
		return err
	}
	return deleteWhere[schema.Site](txn, "id", []uuid.UUID{siteId})
}

func deleteStepExecutionTree(txn *gorm.DB, stepExecutionIds []uuid.UUID) error {
	if err := deleteWhere[schema.Evidence](txn, "step_execution_id", stepExecutionIds); err != nil {
		return err
	}
	if err := deleteWhere[schema.Exception](txn, "step_execution_id", stepExecutionIds); err != nil {
		return err
	}
	if err := deleteWhere[schema.Alert](txn, "step_execution_id", stepExecutionIds); err != nil {
		return err
	}
	return deleteWhere[schema.StepExecution](txn, "id", stepExecutionIds)
}

func deleteExecutionTree(txn *gorm.DB, executionIds []uuid.UUID) error {
	stepExecutionIds, err := collectIds[schema.StepExecution](txn, "execution_id", executionIds)
	if err != nil {
		return err
	}
	if err := deleteStepExecutionTree(txn, stepExecutionIds); err != nil {
		return err
	}
	return deleteWhere[schema.Execution](txn, "id", executionIds)
}

func deleteStepTree(txn *gorm.DB, stepIds []uuid.UUID) error {
	if err := deleteWhere[schema.CameraMapping](txn, "step_id", stepIds); err != nil {
		return err
	}
	stepExecutionIds, err := collectIds[schema.StepExecution](txn, "step_id", stepIds)
	if err != nil {
		return err
	}
	if err := deleteStepExecutionTree(txn, stepExecutionIds); err != nil {
		return err
	}
	return deleteWhere[schema.ChecklistStep](txn, "id", stepIds)
}

// deleteChecklistTree removes the checklist, its steps and their mappings, and
// every historical execution with all step results, evidence, exceptions, and
// alerts. Destructive by design, callers surface this to operators.
func deleteChecklistTree(txn *gorm.DB, checklistId uuid.UUID) error {
	stepIds, err := collectIds[schema.ChecklistStep](txn, "checklist_id", []uuid.UUID{checklistId})
	if err != nil {
		return err
	}
	if err := deleteStepTree(txn, stepIds); err != nil {
		return err
	}

	executionIds, err := collectIds[schema.Execution](txn, "checklist_id", []uuid.UUID{checklistId})
	if err != nil {
		return err
	}
	if err := deleteExecutionTree(txn, executionIds); err != nil {
		return err
	}

	return deleteWhere[schema.Checklist](txn, "id", []uuid.UUID{checklistId})
}
