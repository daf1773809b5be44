package services

import (
	"log/slog"
	"net/http"

	"mcs_platform/monitor/auth"
	"mcs_platform/monitor/schema"
	"mcs_platform/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChecklistService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *ChecklistService) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.userAuth.AuthMiddleware()...)

	// Definition deletes cascade to steps, mappings, and execution history, so
	// they require the manage_checklists permission.
	manage := auth.RequirePermission(s.db, auth.PermManageChecklists)

	r.Route("/templates", func(r chi.Router) {
		r.Get("/", s.ListTemplates)
		r.Post("/", s.CreateTemplate)
		r.Get("/{template_id}", s.GetTemplate)
		r.Put("/{template_id}", s.UpdateTemplate)
		r.With(manage).Delete("/{template_id}", s.DeleteTemplate)
	})

	r.Get("/", s.List)
	r.Post("/", s.Create)

	r.Route("/steps/{step_id}", func(r chi.Router) {
		r.Put("/", s.UpdateStep)
		r.With(manage).Delete("/", s.DeleteStep)
		r.Get("/mappings", s.ListStepMappings)
		r.Post("/mappings", s.CreateStepMapping)
	})

	r.With(manage).Delete("/mappings/{mapping_id}", s.DeleteStepMapping)

	r.Route("/{checklist_id}", func(r chi.Router) {
		r.Get("/", s.Get)
		r.Put("/", s.Update)
		r.With(manage).Delete("/", s.Delete)
		r.Get("/steps", s.ListSteps)
		r.Post("/steps", s.CreateStep)
	})

	return r
}

type createTemplateRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	Version     string `json:"version" validate:"omitempty,max=20"`
}

func (s *ChecklistService) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params createTemplateRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Version == "" {
		params.Version = "1.0"
	}

	template := schema.ChecklistTemplate{
		Id:          uuid.New(),
		Name:        params.Name,
		Description: params.Description,
		Version:     params.Version,
		CreatedBy:   user.Id,
	}

	if result := s.db.Create(&template); result.Error != nil {
		slog.Error("sql error creating checklist template", "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteCreated(w, template)
}

func (s *ChecklistService) ListTemplates(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := utils.Paging(w, r)
	if !ok {
		return
	}

	var templates []schema.ChecklistTemplate
	if result := s.db.Offset(skip).Limit(limit).Find(&templates); result.Error != nil {
		slog.Error("sql error listing checklist templates", "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, templates)
}

func (s *ChecklistService) GetTemplate(w http.ResponseWriter, r *http.Request) {
	templateId, err := utils.URLParamUUID(r, "template_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	template, err := schema.GetTemplate(templateId, s.db)
	if err != nil {
		err = notFoundOrInternal(err, schema.ErrTemplateNotFound)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, template)
}

type updateTemplateRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description"`
	Version     *string `json:"version" validate:"omitempty,max=20"`
}

func (s *ChecklistService) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	templateId, err := utils.URLParamUUID(r, "template_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateTemplateRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	var template schema.ChecklistTemplate
	err = s.db.Transaction(func(txn *gorm.DB) error {
		template, err = schema.GetTemplate(templateId, txn)
		if err != nil {
			return notFoundOrInternal(err, schema.ErrTemplateNotFound)
		}

		if params.Name != nil {
			template.Name = *params.Name
		}
		if params.Description != nil {
			template.Description = *params.Description
		}
		if params.Version != nil {
			template.Version = *params.Version
		}

		if result := txn.Save(&template); result.Error != nil {
			slog.Error("sql error updating checklist template", "template_id", templateId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, template)
}

func (s *ChecklistService) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	templateId, err := utils.URLParamUUID(r, "template_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetTemplate(templateId, txn); err != nil {
			return notFoundOrInternal(err, schema.ErrTemplateNotFound)
		}

		// Checklists derived from the template survive, they only lose the
		// back reference.
		result := txn.Model(&schema.Checklist{}).Where("template_id = ?", templateId).Update("template_id", nil)
		if result.Error != nil {
			slog.Error("sql error detaching checklists from template", "template_id", templateId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if result := txn.Delete(&schema.ChecklistTemplate{Id: templateId}); result.Error != nil {
			slog.Error("sql error deleting checklist template", "template_id", templateId, "error", result.Error)
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

type createChecklistRequest struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Description string     `json:"description"`
	TemplateId  *uuid.UUID `json:"template_id"`
	Status      string     `json:"status" validate:"omitempty,oneof=Active Inactive Archived"`
}

func (s *ChecklistService) Create(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params createChecklistRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Status == "" {
		params.Status = schema.ChecklistActive
	}

	checklist := schema.Checklist{
		Id:          uuid.New(),
		Name:        params.Name,
		Description: params.Description,
		TemplateId:  params.TemplateId,
		Status:      params.Status,
		CreatedBy:   user.Id,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if params.TemplateId != nil {
			if _, err := schema.GetTemplate(*params.TemplateId, txn); err != nil {
				return notFoundOrInternal(err, schema.ErrTemplateNotFound)
			}
		}
		if result := txn.Create(&checklist); result.Error != nil {
			slog.Error("sql error creating checklist", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteCreated(w, checklist)
}

func (s *ChecklistService) List(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := utils.Paging(w, r)
	if !ok {
		return
	}

	var checklists []schema.Checklist
	if result := s.db.Offset(skip).Limit(limit).Find(&checklists); result.Error != nil {
		slog.Error("sql error listing checklists", "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, checklists)
}

func (s *ChecklistService) Get(w http.ResponseWriter, r *http.Request) {
	checklistId, err := utils.URLParamUUID(r, "checklist_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	checklist, err := schema.GetChecklist(checklistId, s.db)
	if err != nil {
		err = notFoundOrInternal(err, schema.ErrChecklistNotFound)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, checklist)
}

type updateChecklistRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description"`
	Status      *string `json:"status" validate:"omitempty,oneof=Active Inactive Archived"`
}

func (s *ChecklistService) Update(w http.ResponseWriter, r *http.Request) {
	checklistId, err := utils.URLParamUUID(r, "checklist_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateChecklistRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	var checklist schema.Checklist
	err = s.db.Transaction(func(txn *gorm.DB) error {
		checklist, err = schema.GetChecklist(checklistId, txn)
		if err != nil {
			return notFoundOrInternal(err, schema.ErrChecklistNotFound)
		}

		if params.Name != nil {
			checklist.Name = *params.Name
		}
		if params.Description != nil {
			checklist.Description = *params.Description
		}
		if params.Status != nil {
			checklist.Status = *params.Status
		}

		if result := txn.Save(&checklist); result.Error != nil {
			slog.Error("sql error updating checklist", "checklist_id", checklistId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, checklist)
}

// Delete removes the checklist together with its steps, camera mappings, and
// every historical execution. Callers should treat this as a compliance
// sensitive operation.
func (s *ChecklistService) Delete(w http.ResponseWriter, r *http.Request) {
	checklistId, err := utils.URLParamUUID(r, "checklist_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkChecklistExists(txn, checklistId); err != nil {
			return err
		}
		return deleteChecklistTree(txn, checklistId)
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	slog.Info("checklist and all execution history deleted", "checklist_id", checklistId, "user_id", user.Id)

	utils.WriteNoContent(w)
}

type createStepRequest struct {
	StepNumber       int    `json:"step_number" validate:"required,gt=0"`
	Description      string `json:"description" validate:"required"`
	Instructions     string `json:"instructions"`
	VerificationType string `json:"verification_type" validate:"omitempty,oneof=Visual Automated Manual"`
}

func (s *ChecklistService) CreateStep(w http.ResponseWriter, r *http.Request) {
	checklistId, err := utils.URLParamUUID(r, "checklist_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params createStepRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	step := schema.ChecklistStep{
		Id:               uuid.New(),
		ChecklistId:      checklistId,
		StepNumber:       params.StepNumber,
		Description:      params.Description,
		Instructions:     params.Instructions,
		VerificationType: params.VerificationType,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkChecklistExists(txn, checklistId); err != nil {
			return err
		}
		if result := txn.Create(&step); result.Error != nil {
			slog.Error("sql error creating checklist step", "checklist_id", checklistId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteCreated(w, step)
}

// ListSteps returns the checklist's steps in ascending step number order
// regardless of insertion order.
func (s *ChecklistService) ListSteps(w http.ResponseWriter, r *http.Request) {
	checklistId, err := utils.URLParamUUID(r, "checklist_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := checkChecklistExists(s.db, checklistId); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var steps []schema.ChecklistStep
	result := s.db.Where("checklist_id = ?", checklistId).Order("step_number asc").Find(&steps)
	if result.Error != nil {
		slog.Error("sql error listing checklist steps", "checklist_id", checklistId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, steps)
}

type updateStepRequest struct {
	StepNumber       *int    `json:"step_number" validate:"omitempty,gt=0"`
	Description      *string `json:"description"`
	Instructions     *string `json:"instructions"`
	VerificationType *string `json:"verification_type" validate:"omitempty,oneof=Visual Automated Manual"`
}

func (s *ChecklistService) UpdateStep(w http.ResponseWriter, r *http.Request) {
	stepId, err := utils.URLParamUUID(r, "step_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateStepRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	var step schema.ChecklistStep
	err = s.db.Transaction(func(txn *gorm.DB) error {
		step, err = schema.GetStep(stepId, txn)
		if err != nil {
			return notFoundOrInternal(err, schema.ErrStepNotFound)
		}

		if params.StepNumber != nil {
			step.StepNumber = *params.StepNumber
		}
		if params.Description != nil {
			step.Description = *params.Description
		}
		if params.Instructions != nil {
			step.Instructions = *params.Instructions
		}
		if params.VerificationType != nil {
			step.VerificationType = *params.VerificationType
		}

		if result := txn.Save(&step); result.Error != nil {
			slog.Error("sql error updating checklist step", "step_id", stepId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, step)
}

func (s *ChecklistService) DeleteStep(w http.ResponseWriter, r *http.Request) {
	stepId, err := utils.URLParamUUID(r, "step_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetStep(stepId, txn); err != nil {
			return notFoundOrInternal(err, schema.ErrStepNotFound)
		}
		return deleteStepTree(txn, []uuid.UUID{stepId})
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteNoContent(w)
}

type createMappingRequest struct {
	CameraId   uuid.UUID `json:"camera_id" validate:"required"`
	ZoneConfig string    `json:"zone_config"`
}

func (s *ChecklistService) CreateStepMapping(w http.ResponseWriter, r *http.Request) {
	stepId, err := utils.URLParamUUID(r, "step_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params createMappingRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	mapping := schema.CameraMapping{
		Id:         uuid.New(),
		CameraId:   params.CameraId,
		StepId:     stepId,
		ZoneConfig: params.ZoneConfig,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetStep(stepId, txn); err != nil {
			return notFoundOrInternal(err, schema.ErrStepNotFound)
		}
		if err := checkCameraExists(txn, params.CameraId); err != nil {
			return err
		}
		if result := txn.Create(&mapping); result.Error != nil {
			slog.Error("sql error creating camera mapping", "step_id", stepId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteCreated(w, mapping)
}

func (s *ChecklistService) DeleteStepMapping(w http.ResponseWriter, r *http.Request) {
	mappingId, err := utils.URLParamUUID(r, "mapping_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		mapping, err := schema.GetMapping(mappingId, txn)
		if err != nil {
			return notFoundOrInternal(err, schema.ErrMappingNotFound)
		}
		if result := txn.Delete(&mapping); result.Error != nil {
			slog.Error("sql error deleting camera mapping", "mapping_id", mappingId, "error", result.Error)
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

func (s *ChecklistService) ListStepMappings(w http.ResponseWriter, r *http.Request) {
	stepId, err := utils.URLParamUUID(r, "step_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := schema.GetStep(stepId, s.db); err != nil {
		err = notFoundOrInternal(err, schema.ErrStepNotFound)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var mappings []schema.CameraMapping
	result := s.db.Where("step_id = ?", stepId).Find(&mappings)
	if result.Error != nil {
		slog.Error("sql error listing step mappings", "step_id", stepId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, mappings)
}
