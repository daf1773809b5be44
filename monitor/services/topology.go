package services

import (
	"log/slog"
	"net/http"
	"time"

	"mcs_platform/monitor/auth"
	"mcs_platform/monitor/schema"
	"mcs_platform/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TopologyService owns the site -> zone -> camera hierarchy. Creating a child
// requires the parent to exist, deleting a parent removes the whole subtree.
type TopologyService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *TopologyService) SiteRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/", s.ListSites)
	r.Post("/", s.CreateSite)
	r.Get("/{site_id}", s.GetSite)
	r.Put("/{site_id}", s.UpdateSite)
	// Deleting a site removes every zone and camera under it.
	r.With(auth.RequirePermission(s.db, auth.PermManageTopology)).Delete("/{site_id}", s.DeleteSite)

	return r
}

func (s *TopologyService) ZoneRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/", s.ListZones)
	r.Post("/", s.CreateZone)
	r.Get("/{zone_id}", s.GetZone)
	r.Put("/{zone_id}", s.UpdateZone)
	r.With(auth.RequirePermission(s.db, auth.PermManageTopology)).Delete("/{zone_id}", s.DeleteZone)

	return r
}

func (s *TopologyService) CameraRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/", s.ListCameras)
	r.Post("/", s.CreateCamera)
	r.Get("/{camera_id}", s.GetCamera)
	r.Put("/{camera_id}", s.UpdateCamera)
	r.With(auth.RequirePermission(s.db, auth.PermManageTopology)).Delete("/{camera_id}", s.DeleteCamera)
	r.Get("/{camera_id}/mappings", s.ListCameraMappings)

	return r
}

type createSiteRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Location    string `json:"location" validate:"max=255"`
	Description string `json:"description"`
	Status      string `json:"status" validate:"omitempty,oneof=Active Inactive"`
}

func (s *TopologyService) CreateSite(w http.ResponseWriter, r *http.Request) {
	var params createSiteRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Status == "" {
		params.Status = "Active"
	}

	site := schema.Site{
		Id:          uuid.New(),
		Name:        params.Name,
		Location:    params.Location,
		Description: params.Description,
		Status:      params.Status,
	}

	if result := s.db.Create(&site); result.Error != nil {
		slog.Error("sql error creating site", "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteCreated(w, site)
}

func (s *TopologyService) ListSites(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := utils.Paging(w, r)
	if !ok {
		return
	}

	var sites []schema.Site
	result := s.db.Offset(skip).Limit(limit).Find(&sites)
	if result.Error != nil {
		slog.Error("sql error listing sites", "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, sites)
}

func (s *TopologyService) GetSite(w http.ResponseWriter, r *http.Request) {
	siteId, err := utils.URLParamUUID(r, "site_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	site, err := schema.GetSite(siteId, s.db)
	if err != nil {
		err = notFoundOrInternal(err, schema.ErrSiteNotFound)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, site)
}

// updateSiteRequest enumerates the mutable site fields, nil means unchanged.
type updateSiteRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Location    *string `json:"location" validate:"omitempty,max=255"`
	Description *string `json:"description"`
	Status      *string `json:"status" validate:"omitempty,oneof=Active Inactive"`
}

func (s *TopologyService) UpdateSite(w http.ResponseWriter, r *http.Request) {
	siteId, err := utils.URLParamUUID(r, "site_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateSiteRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	var site schema.Site
	err = s.db.Transaction(func(txn *gorm.DB) error {
		site, err = schema.GetSite(siteId, txn)
		if err != nil {
			return notFoundOrInternal(err, schema.ErrSiteNotFound)
		}

		if params.Name != nil {
			site.Name = *params.Name
		}
		if params.Location != nil {
			site.Location = *params.Location
		}
		if params.Description != nil {
			site.Description = *params.Description
		}
		if params.Status != nil {
			site.Status = *params.Status
		}

		if result := txn.Save(&site); result.Error != nil {
			slog.Error("sql error updating site", "site_id", siteId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, site)
}

func (s *TopologyService) DeleteSite(w http.ResponseWriter, r *http.Request) {
	siteId, err := utils.URLParamUUID(r, "site_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkSiteExists(txn, siteId); err != nil {
			return err
		}
		return deleteSiteTree(txn, siteId)
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteNoContent(w)
}

type createZoneRequest struct {
	Name        string    `json:"name" validate:"required,max=100"`
	SiteId      uuid.UUID `json:"site_id" validate:"required"`
	Description string    `json:"description"`
	Status      string    `json:"status" validate:"omitempty,oneof=Active Inactive"`
}

func (s *TopologyService) CreateZone(w http.ResponseWriter, r *http.Request) {
	var params createZoneRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Status == "" {
		params.Status = "Active"
	}

	zone := schema.Zone{
		Id:          uuid.New(),
		Name:        params.Name,
		SiteId:      params.SiteId,
		Description: params.Description,
		Status:      params.Status,
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkSiteExists(txn, params.SiteId); err != nil {
			return err
		}
		if result := txn.Create(&zone); result.Error != nil {
			slog.Error("sql error creating zone", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteCreated(w, zone)
}

func (s *TopologyService) ListZones(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := utils.Paging(w, r)
	if !ok {
		return
	}

	siteId, err := utils.QueryParamUUID(r, "site_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	query := s.db.Offset(skip).Limit(limit)
	if siteId != uuid.Nil {
		query = query.Where("site_id = ?", siteId)
	}

	var zones []schema.Zone
	if result := query.Find(&zones); result.Error != nil {
		slog.Error("sql error listing zones", "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, zones)
}

func (s *TopologyService) GetZone(w http.ResponseWriter, r *http.Request) {
	zoneId, err := utils.URLParamUUID(r, "zone_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	zone, err := schema.GetZone(zoneId, s.db)
	if err != nil {
		err = notFoundOrInternal(err, schema.ErrZoneNotFound)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, zone)
}

type updateZoneRequest struct {
	Name        *string    `json:"name" validate:"omitempty,max=100"`
	SiteId      *uuid.UUID `json:"site_id"`
	Description *string    `json:"description"`
	Status      *string    `json:"status" validate:"omitempty,oneof=Active Inactive"`
}

func (s *TopologyService) UpdateZone(w http.ResponseWriter, r *http.Request) {
	zoneId, err := utils.URLParamUUID(r, "zone_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateZoneRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	var zone schema.Zone
	err = s.db.Transaction(func(txn *gorm.DB) error {
		zone, err = schema.GetZone(zoneId, txn)
		if err != nil {
			return notFoundOrInternal(err, schema.ErrZoneNotFound)
		}

		// Moving a zone to another site requires the new site to exist.
		if params.SiteId != nil && *params.SiteId != zone.SiteId {
			if err := checkSiteExists(txn, *params.SiteId); err != nil {
				return err
			}
			zone.SiteId = *params.SiteId
		}

		if params.Name != nil {
			zone.Name = *params.Name
		}
		if params.Description != nil {
			zone.Description = *params.Description
		}
		if params.Status != nil {
			zone.Status = *params.Status
		}

		if result := txn.Save(&zone); result.Error != nil {
			slog.Error("sql error updating zone", "zone_id", zoneId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, zone)
}

func (s *TopologyService) DeleteZone(w http.ResponseWriter, r *http.Request) {
	zoneId, err := utils.URLParamUUID(r, "zone_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkZoneExists(txn, zoneId); err != nil {
			return err
		}
		return deleteZoneTree(txn, []uuid.UUID{zoneId})
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteNoContent(w)
}

type createCameraRequest struct {
	Name   string    `json:"name" validate:"required,max=100"`
	Code   string    `json:"code" validate:"max=50"`
	ZoneId uuid.UUID `json:"zone_id" validate:"required"`

	Type         string `json:"type" validate:"max=50"`
	Model        string `json:"model" validate:"max=100"`
	SerialNumber string `json:"serial_number" validate:"max=100"`
	IpAddress    string `json:"ip_address" validate:"omitempty,ip"`
	MacAddress   string `json:"mac_address" validate:"omitempty,mac"`

	LocationDescription string     `json:"location_description"`
	Coordinates         string     `json:"coordinates" validate:"max=100"`
	InstallationDate    *time.Time `json:"installation_date"`

	Status string `json:"status" validate:"omitempty,oneof=Online Offline Maintenance Error"`

	Resolution  string `json:"resolution" validate:"max=50"`
	FrameRate   int    `json:"frame_rate" validate:"gte=0"`
	FieldOfView string `json:"field_of_view" validate:"max=100"`

	NightVision      bool  `json:"night_vision"`
	AudioEnabled     bool  `json:"audio_enabled"`
	MotionDetection  bool  `json:"motion_detection"`
	RecordingEnabled *bool `json:"recording_enabled"`

	FirmwareVersion string `json:"firmware_version" validate:"max=50"`
	Configuration   string `json:"configuration"`
}

func (s *TopologyService) CreateCamera(w http.ResponseWriter, r *http.Request) {
	var params createCameraRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Status == "" {
		params.Status = schema.CameraOnline
	}
	recording := true
	if params.RecordingEnabled != nil {
		recording = *params.RecordingEnabled
	}

	camera := schema.Camera{
		Id:                  uuid.New(),
		Name:                params.Name,
		Code:                params.Code,
		ZoneId:              params.ZoneId,
		Type:                params.Type,
		Model:               params.Model,
		SerialNumber:        params.SerialNumber,
		IpAddress:           params.IpAddress,
		MacAddress:          params.MacAddress,
		LocationDescription: params.LocationDescription,
		Coordinates:         params.Coordinates,
		InstallationDate:    params.InstallationDate,
		Status:              params.Status,
		Resolution:          params.Resolution,
		FrameRate:           params.FrameRate,
		FieldOfView:         params.FieldOfView,
		NightVision:         params.NightVision,
		AudioEnabled:        params.AudioEnabled,
		MotionDetection:     params.MotionDetection,
		RecordingEnabled:    recording,
		FirmwareVersion:     params.FirmwareVersion,
		Configuration:       params.Configuration,
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkZoneExists(txn, params.ZoneId); err != nil {
			return err
		}
		if result := txn.Create(&camera); result.Error != nil {
			slog.Error("sql error creating camera", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteCreated(w, camera)
}

func (s *TopologyService) ListCameras(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := utils.Paging(w, r)
	if !ok {
		return
	}

	zoneId, err := utils.QueryParamUUID(r, "zone_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	query := s.db.Offset(skip).Limit(limit)
	if zoneId != uuid.Nil {
		query = query.Where("zone_id = ?", zoneId)
	}

	var cameras []schema.Camera
	if result := query.Find(&cameras); result.Error != nil {
		slog.Error("sql error listing cameras", "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, cameras)
}

func (s *TopologyService) GetCamera(w http.ResponseWriter, r *http.Request) {
	cameraId, err := utils.URLParamUUID(r, "camera_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	camera, err := schema.GetCamera(cameraId, s.db)
	if err != nil {
		err = notFoundOrInternal(err, schema.ErrCameraNotFound)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, camera)
}

type updateCameraRequest struct {
	Name   *string    `json:"name" validate:"omitempty,max=100"`
	Code   *string    `json:"code" validate:"omitempty,max=50"`
	ZoneId *uuid.UUID `json:"zone_id"`

	Type         *string `json:"type" validate:"omitempty,max=50"`
	Model        *string `json:"model" validate:"omitempty,max=100"`
	SerialNumber *string `json:"serial_number" validate:"omitempty,max=100"`
	IpAddress    *string `json:"ip_address" validate:"omitempty,ip"`
	MacAddress   *string `json:"mac_address" validate:"omitempty,mac"`

	LocationDescription *string    `json:"location_description"`
	Coordinates         *string    `json:"coordinates" validate:"omitempty,max=100"`
	InstallationDate    *time.Time `json:"installation_date"`

	Status *string `json:"status" validate:"omitempty,oneof=Online Offline Maintenance Error"`

	Resolution  *string `json:"resolution" validate:"omitempty,max=50"`
	FrameRate   *int    `json:"frame_rate" validate:"omitempty,gte=0"`
	FieldOfView *string `json:"field_of_view" validate:"omitempty,max=100"`

	NightVision      *bool `json:"night_vision"`
	AudioEnabled     *bool `json:"audio_enabled"`
	MotionDetection  *bool `json:"motion_detection"`
	RecordingEnabled *bool `json:"recording_enabled"`

	LastMaintenance *time.Time `json:"last_maintenance"`
	FirmwareVersion *string    `json:"firmware_version" validate:"omitempty,max=50"`
	Configuration   *string    `json:"configuration"`
}

func (s *TopologyService) UpdateCamera(w http.ResponseWriter, r *http.Request) {
	cameraId, err := utils.URLParamUUID(r, "camera_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateCameraRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	var camera schema.Camera
	err = s.db.Transaction(func(txn *gorm.DB) error {
		camera, err = schema.GetCamera(cameraId, txn)
		if err != nil {
			return notFoundOrInternal(err, schema.ErrCameraNotFound)
		}

		if params.ZoneId != nil && *params.ZoneId != camera.ZoneId {
			if err := checkZoneExists(txn, *params.ZoneId); err != nil {
				return err
			}
			camera.ZoneId = *params.ZoneId
		}

		if params.Name != nil {
			camera.Name = *params.Name
		}
		if params.Code != nil {
			camera.Code = *params.Code
		}
		if params.Type != nil {
			camera.Type = *params.Type
		}
		if params.Model != nil {
			camera.Model = *params.Model
		}
		if params.SerialNumber != nil {
			camera.SerialNumber = *params.SerialNumber
		}
		if params.IpAddress != nil {
			camera.IpAddress = *params.IpAddress
		}
		if params.MacAddress != nil {
			camera.MacAddress = *params.MacAddress
		}
		if params.LocationDescription != nil {
			camera.LocationDescription = *params.LocationDescription
		}
		if params.Coordinates != nil {
			camera.Coordinates = *params.Coordinates
		}
		if params.InstallationDate != nil {
			camera.InstallationDate = params.InstallationDate
		}
		if params.Status != nil {
			camera.Status = *params.Status
		}
		if params.Resolution != nil {
			camera.Resolution = *params.Resolution
		}
		if params.FrameRate != nil {
			camera.FrameRate = *params.FrameRate
		}
		if params.FieldOfView != nil {
			camera.FieldOfView = *params.FieldOfView
		}
		if params.NightVision != nil {
			camera.NightVision = *params.NightVision
		}
		if params.AudioEnabled != nil {
			camera.AudioEnabled = *params.AudioEnabled
		}
		if params.MotionDetection != nil {
			camera.MotionDetection = *params.MotionDetection
		}
		if params.RecordingEnabled != nil {
			camera.RecordingEnabled = *params.RecordingEnabled
		}
		if params.LastMaintenance != nil {
			camera.LastMaintenance = params.LastMaintenance
		}
		if params.FirmwareVersion != nil {
			camera.FirmwareVersion = *params.FirmwareVersion
		}
		if params.Configuration != nil {
			camera.Configuration = *params.Configuration
		}

		if result := txn.Save(&camera); result.Error != nil {
			slog.Error("sql error updating camera", "camera_id", cameraId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, camera)
}

func (s *TopologyService) DeleteCamera(w http.ResponseWriter, r *http.Request) {
	cameraId, err := utils.URLParamUUID(r, "camera_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkCameraExists(txn, cameraId); err != nil {
			return err
		}
		return deleteCameraTree(txn, []uuid.UUID{cameraId})
	})

	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteNoContent(w)
}

func (s *TopologyService) ListCameraMappings(w http.ResponseWriter, r *http.Request) {
	cameraId, err := utils.URLParamUUID(r, "camera_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := checkCameraExists(s.db, cameraId); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var mappings []schema.CameraMapping
	result := s.db.Where("camera_id = ?", cameraId).Find(&mappings)
	if result.Error != nil {
		slog.Error("sql error listing camera mappings", "camera_id", cameraId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, mappings)
}
