package services

import (
	"log"
	"net/http"
	"os"

	"mcs_platform/monitor/auth"
	"mcs_platform/monitor/metrics"
	"mcs_platform/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

type Monitor struct {
	user      UserService
	topology  TopologyService
	checklist ChecklistService
	execution ExecutionService
	report    ReportService

	db *gorm.DB
}

func NewMonitor(db *gorm.DB, userAuth auth.IdentityProvider) Monitor {
	return Monitor{
		user:      UserService{db: db, userAuth: userAuth},
		topology:  TopologyService{db: db, userAuth: userAuth},
		checklist: ChecklistService{db: db, userAuth: userAuth},
		execution: ExecutionService{db: db, userAuth: userAuth},
		report:    ReportService{db: db, userAuth: userAuth},
		db:        db,
	}
}

func (m *Monitor) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))
	r.Use(metrics.RequestMetrics)

	r.Mount("/users", m.user.Routes())
	r.Mount("/sites", m.topology.SiteRoutes())
	r.Mount("/zones", m.topology.ZoneRoutes())
	r.Mount("/cameras", m.topology.CameraRoutes())
	r.Mount("/checklists", m.checklist.Routes())
	r.Mount("/executions", m.execution.Routes())
	r.Mount("/reports", m.report.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	return r
}
