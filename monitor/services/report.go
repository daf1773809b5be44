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

type ReportService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *ReportService) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/", s.List)
	r.Post("/", s.Create)
	r.Get("/{report_id}", s.Get)

	return r
}

func (s *ReportService) List(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := utils.Paging(w, r)
	if !ok {
		return
	}

	var reports []schema.Report
	result := s.db.Offset(skip).Limit(limit).Order("created_at desc").Find(&reports)
	if result.Error != nil {
		slog.Error("sql error listing reports", "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, reports)
}

type createReportRequest struct {
	Type       string `json:"type" validate:"required,oneof='Execution Summary' Compliance Performance"`
	Parameters string `json:"parameters"`
	FilePath   string `json:"file_path" validate:"omitempty,max=500"`
}

func (s *ReportService) Create(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params createReportRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	report := schema.Report{
		Id:          uuid.New(),
		Type:        params.Type,
		Parameters:  params.Parameters,
		FilePath:    params.FilePath,
		GeneratedBy: user.Id,
	}

	if result := s.db.Create(&report); result.Error != nil {
		slog.Error("sql error creating report", "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteCreated(w, report)
}

func (s *ReportService) Get(w http.ResponseWriter, r *http.Request) {
	reportId, err := utils.URLParamUUID(r, "report_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := schema.GetReport(reportId, s.db)
	if err != nil {
		err = notFoundOrInternal(err, schema.ErrReportNotFound)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, report)
}
