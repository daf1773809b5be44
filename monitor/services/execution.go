package services

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"mcs_platform/monitor/auth"
	"mcs_platform/monitor/metrics"
	"mcs_platform/monitor/schema"
	"mcs_platform/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ExecutionService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *ExecutionService) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/", s.List)
	r.Post("/", s.Start)

	r.Route("/steps/{step_execution_id}", func(r chi.Router) {
		r.Put("/", s.UpdateStepExecution)
		r.Get("/evidence", s.ListEvidence)
		r.Post("/evidence", s.CreateEvidence)
		r.Get("/exceptions", s.ListExceptions)
		r.Post("/exceptions", s.CreateException)
		r.Get("/alerts", s.ListAlerts)
		r.Post("/alerts", s.CreateAlert)
	})

	r.Put("/evidence/{evidence_id}", s.UpdateEvidenceMetadata)
	r.Put("/exceptions/{exception_id}/resolve", s.ResolveException)
	r.Put("/alerts/{alert_id}/acknowledge", s.AcknowledgeAlert)
	r.Put("/alerts/{alert_id}/resolve", s.ResolveAlert)

	r.Route("/{execution_id}", func(r chi.Router) {
		r.Get("/", s.Get)
		r.Put("/complete", s.Complete)
		r.Get("/steps", s.ListStepExecutions)
		r.Post("/steps", s.CreateStepExecution)
	})

	return r
}

type startExecutionRequest struct {
	ChecklistId uuid.UUID `json:"checklist_id" validate:"required"`
	Notes       string    `json:"notes"`
}

func (s *ExecutionService) Start(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params startExecutionRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	execution := schema.Execution{
		Id:          uuid.New(),
		ChecklistId: params.ChecklistId,
		UserId:      user.Id,
		StartTime:   time.Now().UTC(),
		Status:      schema.ExecutionInProgress,
		Notes:       params.Notes,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkChecklistExists(txn, params.ChecklistId); err != nil {
			return err
		}
		if result := txn.Create(&execution); result.Error != nil {
			slog.Error("sql error creating execution", "checklist_id", params.ChecklistId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	metrics.ExecutionStarted()

	utils.WriteCreated(w, execution)
}

func (s *ExecutionService) List(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := utils.Paging(w, r)
	if !ok {
		return
	}

	checklistId, err := utils.QueryParamUUID(r, "checklist_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	query := s.db.Offset(skip).Limit(limit).Order("start_time desc")
	if checklistId != uuid.Nil {
		query = query.Where("checklist_id = ?", checklistId)
	}

	var executions []schema.Execution
	if result := query.Find(&executions); result.Error != nil {
		slog.Error("sql error listing executions", "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, executions)
}

func (s *ExecutionService) Get(w http.ResponseWriter, r *http.Request) {
	executionId, err := utils.URLParamUUID(r, "execution_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var execution schema.Execution
	result := s.db.Preload("StepExecutions").First(&execution, "id = ?", executionId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			http.Error(w, schema.ErrExecutionNotFound.Error(), http.StatusNotFound)
			return
		}
		slog.Error("sql error retrieving execution", "execution_id", executionId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, execution)
}

// Complete marks the execution finished. The operation is idempotent, calling
// it on an already completed execution just refreshes the end timestamp.
func (s *ExecutionService) Complete(w http.ResponseWriter, r *http.Request) {
	executionId, err := utils.URLParamUUID(r, "execution_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var execution schema.Execution
	err = s.db.Transaction(func(txn *gorm.DB) error {
		execution, err = schema.GetExecution(executionId, txn)
		if err != nil {
			return notFoundOrInternal(err, schema.ErrExecutionNotFound)
		}

		now := time.Now().UTC()
		execution.EndTime = &now
		execution.Status = schema.ExecutionCompleted

		if result := txn.Save(&execution); result.Error != nil {
			slog.Error("sql error completing execution", "execution_id", executionId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, execution)
}

type createStepExecutionRequest struct {
	StepId             uuid.UUID `json:"step_id" validate:"required"`
	Status             string    `json:"status" validate:"omitempty,oneof=Pending 'In Progress' Completed Failed"`
	VerificationResult *string   `json:"verification_result" validate:"omitempty,oneof=Pass Fail Warning"`
	ExecutionTime      float64   `json:"execution_time" validate:"gte=0"`
	Notes              string    `json:"notes"`
}

func (s *ExecutionService) CreateStepExecution(w http.ResponseWriter, r *http.Request) {
	executionId, err := utils.URLParamUUID(r, "execution_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params createStepExecutionRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Status == "" {
		params.Status = schema.StepPending
	}

	stepExecution := schema.StepExecution{
		Id:                 uuid.New(),
		ExecutionId:        executionId,
		StepId:             params.StepId,
		Status:             params.Status,
		VerificationResult: params.VerificationResult,
		ExecutionTime:      params.ExecutionTime,
		Notes:              params.Notes,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		execution, err := schema.GetExecution(executionId, txn)
		if err != nil {
			return notFoundOrInternal(err, schema.ErrExecutionNotFound)
		}

		step, err := schema.GetStep(params.StepId, txn)
		if err != nil {
			return notFoundOrInternal(err, schema.ErrStepNotFound)
		}

		// Recording a result against a step from a different checklist would
		// silently corrupt the execution record.
		if step.ChecklistId != execution.ChecklistId {
			return CodedError(ErrStepNotInChecklist, http.StatusUnprocessableEntity)
		}

		if result := txn.Create(&stepExecution); result.Error != nil {
			slog.Error("sql error creating step execution", "execution_id", executionId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteCreated(w, stepExecution)
}

func (s *ExecutionService) ListStepExecutions(w http.ResponseWriter, r *http.Request) {
	executionId, err := utils.URLParamUUID(r, "execution_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := schema.GetExecution(executionId, s.db); err != nil {
		err = notFoundOrInternal(err, schema.ErrExecutionNotFound)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var stepExecutions []schema.StepExecution
	result := s.db.Where("execution_id = ?", executionId).Order("created_at asc").Find(&stepExecutions)
	if result.Error != nil {
		slog.Error("sql error listing step executions", "execution_id", executionId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, stepExecutions)
}

type updateStepExecutionRequest struct {
	Status             *string  `json:"status" validate:"omitempty,oneof=Pending 'In Progress' Completed Failed"`
	VerificationResult *string  `json:"verification_result" validate:"omitempty,oneof=Pass Fail Warning"`
	ExecutionTime      *float64 `json:"execution_time" validate:"omitempty,gte=0"`
	Notes              *string  `json:"notes"`
}

func (s *ExecutionService) UpdateStepExecution(w http.ResponseWriter, r *http.Request) {
	stepExecutionId, err := utils.URLParamUUID(r, "step_execution_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateStepExecutionRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	var stepExecution schema.StepExecution
	err = s.db.Transaction(func(txn *gorm.DB) error {
		stepExecution, err = schema.GetStepExecution(stepExecutionId, txn)
		if err != nil {
			return notFoundOrInternal(err, schema.ErrStepExecutionNotFound)
		}

		if params.Status != nil {
			stepExecution.Status = *params.Status
		}
		if params.VerificationResult != nil {
			stepExecution.VerificationResult = params.VerificationResult
		}
		if params.ExecutionTime != nil {
			stepExecution.ExecutionTime = *params.ExecutionTime
		}
		if params.Notes != nil {
			stepExecution.Notes = *params.Notes
		}

		if result := txn.Save(&stepExecution); result.Error != nil {
			slog.Error("sql error updating step execution", "step_execution_id", stepExecutionId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, stepExecution)
}

type createEvidenceRequest struct {
	FilePath  string     `json:"file_path" validate:"required,max=500"`
	Type      string     `json:"type" validate:"omitempty,oneof=Image Video Log"`
	Timestamp *time.Time `json:"timestamp"`
	Metadata  string     `json:"metadata"`
}

func (s *ExecutionService) CreateEvidence(w http.ResponseWriter, r *http.Request) {
	stepExecutionId, err := utils.URLParamUUID(r, "step_execution_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params createEvidenceRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	timestamp := time.Now().UTC()
	if params.Timestamp != nil {
		timestamp = *params.Timestamp
	}

	evidence := schema.Evidence{
		Id:              uuid.New(),
		StepExecutionId: stepExecutionId,
		FilePath:        params.FilePath,
		Type:            params.Type,
		Timestamp:       timestamp,
		Metadata:        params.Metadata,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetStepExecution(stepExecutionId, txn); err != nil {
			return notFoundOrInternal(err, schema.ErrStepExecutionNotFound)
		}
		if result := txn.Create(&evidence); result.Error != nil {
			slog.Error("sql error creating evidence", "step_execution_id", stepExecutionId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteCreated(w, evidence)
}

func (s *ExecutionService) ListEvidence(w http.ResponseWriter, r *http.Request) {
	stepExecutionId, err := utils.URLParamUUID(r, "step_execution_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := schema.GetStepExecution(stepExecutionId, s.db); err != nil {
		err = notFoundOrInternal(err, schema.ErrStepExecutionNotFound)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var evidence []schema.Evidence
	result := s.db.Where("step_execution_id = ?", stepExecutionId).Order("timestamp asc").Find(&evidence)
	if result.Error != nil {
		slog.Error("sql error listing evidence", "step_execution_id", stepExecutionId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, evidence)
}

type updateEvidenceRequest struct {
	Metadata string `json:"metadata"`
}

// UpdateEvidenceMetadata amends the metadata annotation. Every other evidence
// field is immutable once recorded.
func (s *ExecutionService) UpdateEvidenceMetadata(w http.ResponseWriter, r *http.Request) {
	evidenceId, err := utils.URLParamUUID(r, "evidence_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateEvidenceRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	var evidence schema.Evidence
	err = s.db.Transaction(func(txn *gorm.DB) error {
		evidence, err = schema.GetEvidence(evidenceId, txn)
		if err != nil {
			return notFoundOrInternal(err, schema.ErrEvidenceNotFound)
		}

		evidence.Metadata = params.Metadata

		result := txn.Model(&evidence).Update("metadata", params.Metadata)
		if result.Error != nil {
			slog.Error("sql error updating evidence metadata", "evidence_id", evidenceId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, evidence)
}

type createExceptionRequest struct {
	Type        string `json:"type" validate:"omitempty,oneof=Procedural Technical Safety"`
	Description string `json:"description" validate:"required"`
}

func (s *ExecutionService) CreateException(w http.ResponseWriter, r *http.Request) {
	stepExecutionId, err := utils.URLParamUUID(r, "step_execution_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params createExceptionRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	exception := schema.Exception{
		Id:              uuid.New(),
		StepExecutionId: stepExecutionId,
		Type:            params.Type,
		Description:     params.Description,
		Status:          schema.ExceptionOpen,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetStepExecution(stepExecutionId, txn); err != nil {
			return notFoundOrInternal(err, schema.ErrStepExecutionNotFound)
		}
		if result := txn.Create(&exception); result.Error != nil {
			slog.Error("sql error creating exception", "step_execution_id", stepExecutionId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteCreated(w, exception)
}

func (s *ExecutionService) ListExceptions(w http.ResponseWriter, r *http.Request) {
	stepExecutionId, err := utils.URLParamUUID(r, "step_execution_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := schema.GetStepExecution(stepExecutionId, s.db); err != nil {
		err = notFoundOrInternal(err, schema.ErrStepExecutionNotFound)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var exceptions []schema.Exception
	result := s.db.Where("step_execution_id = ?", stepExecutionId).Find(&exceptions)
	if result.Error != nil {
		slog.Error("sql error listing exceptions", "step_execution_id", stepExecutionId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, exceptions)
}

func (s *ExecutionService) ResolveException(w http.ResponseWriter, r *http.Request) {
	exceptionId, err := utils.URLParamUUID(r, "exception_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var exception schema.Exception
	err = s.db.Transaction(func(txn *gorm.DB) error {
		exception, err = schema.GetException(exceptionId, txn)
		if err != nil {
			return notFoundOrInternal(err, schema.ErrExceptionNotFound)
		}

		now := time.Now().UTC()
		exception.Status = schema.ExceptionResolved
		exception.ResolvedBy = &user.Id
		exception.ResolvedAt = &now

		if result := txn.Save(&exception); result.Error != nil {
			slog.Error("sql error resolving exception", "exception_id", exceptionId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, exception)
}

type createAlertRequest struct {
	Type     string `json:"type" validate:"omitempty,oneof=Warning Error Information"`
	Severity string `json:"severity" validate:"omitempty,oneof=Low Medium High Critical"`
	Message  string `json:"message" validate:"required"`
}

func (s *ExecutionService) CreateAlert(w http.ResponseWriter, r *http.Request) {
	stepExecutionId, err := utils.URLParamUUID(r, "step_execution_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params createAlertRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Severity == "" {
		params.Severity = schema.SeverityLow
	}

	alert := schema.Alert{
		Id:              uuid.New(),
		StepExecutionId: stepExecutionId,
		Type:            params.Type,
		Severity:        params.Severity,
		Message:         params.Message,
		Status:          schema.AlertActive,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetStepExecution(stepExecutionId, txn); err != nil {
			return notFoundOrInternal(err, schema.ErrStepExecutionNotFound)
		}
		if result := txn.Create(&alert); result.Error != nil {
			slog.Error("sql error creating alert", "step_execution_id", stepExecutionId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	metrics.AlertRaised()

	utils.WriteCreated(w, alert)
}

func (s *ExecutionService) ListAlerts(w http.ResponseWriter, r *http.Request) {
	stepExecutionId, err := utils.URLParamUUID(r, "step_execution_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := schema.GetStepExecution(stepExecutionId, s.db); err != nil {
		err = notFoundOrInternal(err, schema.ErrStepExecutionNotFound)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var alerts []schema.Alert
	result := s.db.Where("step_execution_id = ?", stepExecutionId).Find(&alerts)
	if result.Error != nil {
		slog.Error("sql error listing alerts", "step_execution_id", stepExecutionId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, alerts)
}

func (s *ExecutionService) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	s.setAlertStatus(w, r, schema.AlertAcknowledged)
}

func (s *ExecutionService) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	s.setAlertStatus(w, r, schema.AlertResolved)
}

func (s *ExecutionService) setAlertStatus(w http.ResponseWriter, r *http.Request, status string) {
	alertId, err := utils.URLParamUUID(r, "alert_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var alert schema.Alert
	err = s.db.Transaction(func(txn *gorm.DB) error {
		alert, err = schema.GetAlert(alertId, txn)
		if err != nil {
			return notFoundOrInternal(err, schema.ErrAlertNotFound)
		}

		alert.Status = status

		if result := txn.Save(&alert); result.Error != nil {
			slog.Error("sql error updating alert status", "alert_id", alertId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, alert)
}
