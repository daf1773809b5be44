package schema

import (
	"time"

	"github.com/google/uuid"
)

// Site/Zone/Camera form the three level physical hierarchy. Deletes cascade
// down the tree via the explicit routines in the services package, the gorm
// constraints exist so that the database enforces the same ownership.

type Site struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Name        string `gorm:"size:100;not null" json:"name"`
	Location    string `gorm:"size:255" json:"location"`
	Description string `json:"description"`
	Status      string `gorm:"size:20;not null;default:'Active'" json:"status"`

	Zones []Zone `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Zone struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `json:"description"`
	Status      string `gorm:"size:20;not null;default:'Active'" json:"status"`

	SiteId uuid.UUID `gorm:"type:uuid;not null;index" json:"site_id"`
	Site   *Site     `json:"-"`

	Cameras []Camera `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	CameraOnline      = "Online"
	CameraOffline     = "Offline"
	CameraMaintenance = "Maintenance"
	CameraError       = "Error"
)

type Camera struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Name string `gorm:"size:100;not null" json:"name"`
	Code string `gorm:"size:50" json:"code"`

	ZoneId uuid.UUID `gorm:"type:uuid;not null;index" json:"zone_id"`
	Zone   *Zone     `json:"-"`

	Type         string `gorm:"size:50" json:"type"` // Fixed, PTZ, Dome
	Model        string `gorm:"size:100" json:"model"`
	SerialNumber string `gorm:"size:100" json:"serial_number"`
	IpAddress    string `gorm:"size:50" json:"ip_address"`
	MacAddress   string `gorm:"size:50" json:"mac_address"`

	LocationDescription string     `json:"location_description"`
	Coordinates         string     `gorm:"size:100" json:"coordinates"`
	InstallationDate    *time.Time `json:"installation_date"`

	Status string `gorm:"size:20;not null;default:'Online'" json:"status"`

	Resolution  string `gorm:"size:50" json:"resolution"`
	FrameRate   int    `json:"frame_rate"`
	FieldOfView string `gorm:"size:100" json:"field_of_view"`

	NightVision      bool `gorm:"not null;default:false" json:"night_vision"`
	AudioEnabled     bool `gorm:"not null;default:false" json:"audio_enabled"`
	MotionDetection  bool `gorm:"not null;default:false" json:"motion_detection"`
	RecordingEnabled bool `gorm:"not null;default:true" json:"recording_enabled"`

	LastMaintenance *time.Time `json:"last_maintenance"`
	FirmwareVersion string     `gorm:"size:50" json:"firmware_version"`
	Configuration   string     `json:"configuration"` // json configuration parameters

	Mappings []CameraMapping `gorm:"foreignKey:CameraId;constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CameraMapping links a camera to a checklist step along with the monitoring
// zone/angle configuration used to verify that step.
type CameraMapping struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	CameraId uuid.UUID `gorm:"type:uuid;not null;index" json:"camera_id"`
	Camera   *Camera   `json:"-"`

	StepId uuid.UUID      `gorm:"type:uuid;not null;index" json:"step_id"`
	Step   *ChecklistStep `json:"-"`

	ZoneConfig string `json:"zone_config"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ChecklistTemplate struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `json:"description"`
	Version     string `gorm:"size:20;not null;default:'1.0'" json:"version"`

	CreatedBy uuid.UUID `gorm:"type:uuid" json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	ChecklistActive   = "Active"
	ChecklistInactive = "Inactive"
	ChecklistArchived = "Archived"
)

type Checklist struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `json:"description"`
	Status      string `gorm:"size:20;not null;default:'Active'" json:"status"`

	TemplateId *uuid.UUID         `gorm:"type:uuid" json:"template_id"`
	Template   *ChecklistTemplate `json:"-"`

	CreatedBy uuid.UUID `gorm:"type:uuid" json:"created_by"`

	Steps      []ChecklistStep `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Executions []Execution     `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	VerificationVisual    = "Visual"
	VerificationAutomated = "Automated"
	VerificationManual    = "Manual"
)

// StepNumber defines the execution order within a checklist. Values need not
// be contiguous and duplicates are permitted, ordering is all that matters.
type ChecklistStep struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ChecklistId uuid.UUID  `gorm:"type:uuid;not null;index" json:"checklist_id"`
	Checklist   *Checklist `json:"-"`

	StepNumber       int    `gorm:"not null" json:"step_number"`
	Description      string `gorm:"not null" json:"description"`
	Instructions     string `json:"instructions"`
	VerificationType string `gorm:"size:50" json:"verification_type"`

	Mappings []CameraMapping `gorm:"foreignKey:StepId;constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	ExecutionInProgress = "In Progress"
	ExecutionCompleted  = "Completed"
	ExecutionFailed     = "Failed"
	ExecutionAborted    = "Aborted"
)

// Execution is one run of a checklist by a user. EndTime stays null until the
// status leaves "In Progress".
type Execution struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ChecklistId uuid.UUID  `gorm:"type:uuid;not null;index" json:"checklist_id"`
	Checklist   *Checklist `json:"-"`

	UserId uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	User   *User     `json:"-"`

	StartTime time.Time  `gorm:"not null" json:"start_time"`
	EndTime   *time.Time `json:"end_time"`

	Status string `gorm:"size:20;not null;default:'In Progress'" json:"status"`
	Notes  string `json:"notes"`

	StepExecutions []StepExecution `gorm:"constraint:OnDelete:CASCADE" json:"step_executions,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	StepPending    = "Pending"
	StepInProgress = "In Progress"
	StepCompleted  = "Completed"
	StepFailed     = "Failed"
)

const (
	ResultPass    = "Pass"
	ResultFail    = "Fail"
	ResultWarning = "Warning"
)

// StepExecution records the outcome of performing one checklist step within
// one execution. Multiple rows per (execution, step) pair are allowed so that
// a step can be retried.
type StepExecution struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ExecutionId uuid.UUID  `gorm:"type:uuid;not null;index" json:"execution_id"`
	Execution   *Execution `json:"-"`

	StepId uuid.UUID      `gorm:"type:uuid;not null;index" json:"step_id"`
	Step   *ChecklistStep `json:"-"`

	Status             string  `gorm:"size:20;not null;default:'Pending'" json:"status"`
	VerificationResult *string `gorm:"size:20" json:"verification_result"` // Pass, Fail, Warning
	ExecutionTime      float64 `json:"execution_time"`                     // seconds
	Notes              string  `json:"notes"`

	Evidence   []Evidence  `gorm:"foreignKey:StepExecutionId;constraint:OnDelete:CASCADE" json:"-"`
	Exceptions []Exception `gorm:"foreignKey:StepExecutionId;constraint:OnDelete:CASCADE" json:"-"`
	Alerts     []Alert     `gorm:"foreignKey:StepExecutionId;constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	EvidenceImage = "Image"
	EvidenceVideo = "Video"
	EvidenceLog   = "Log"
)

// Evidence is immutable once created, only Metadata may be amended.
type Evidence struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	StepExecutionId uuid.UUID `gorm:"type:uuid;not null;index" json:"step_execution_id"`

	FilePath  string    `gorm:"size:500;not null" json:"file_path"`
	Type      string    `gorm:"size:50" json:"type"`
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
	Metadata  string    `json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
}

const (
	ExceptionOpen     = "Open"
	ExceptionInReview = "In Review"
	ExceptionResolved = "Resolved"
	ExceptionClosed   = "Closed"
)

type Exception struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	StepExecutionId uuid.UUID `gorm:"type:uuid;not null;index" json:"step_execution_id"`

	Type        string `gorm:"size:50" json:"type"` // Procedural, Technical, Safety
	Description string `gorm:"not null" json:"description"`
	Status      string `gorm:"size:20;not null;default:'Open'" json:"status"`

	ResolvedBy *uuid.UUID `gorm:"type:uuid" json:"resolved_by"`
	ResolvedAt *time.Time `json:"resolved_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	SeverityLow      = "Low"
	SeverityMedium   = "Medium"
	SeverityHigh     = "High"
	SeverityCritical = "Critical"
)

const (
	AlertActive       = "Active"
	AlertAcknowledged = "Acknowledged"
	AlertResolved     = "Resolved"
)

type Alert struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	StepExecutionId uuid.UUID `gorm:"type:uuid;not null;index" json:"step_execution_id"`

	Type     string `gorm:"size:50" json:"type"` // Warning, Error, Information
	Severity string `gorm:"size:20" json:"severity"`
	Message  string `gorm:"not null" json:"message"`
	Status   string `gorm:"size:20;not null;default:'Active'" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	UserActive    = "Active"
	UserInactive  = "Inactive"
	UserSuspended = "Suspended"
)

// Users are soft deleted by setting Status to Inactive so that historical
// executions keep a valid attribution.
type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Username string `gorm:"unique;size:50;not null" json:"username"`
	Email    string `gorm:"unique;size:100;not null" json:"email"`
	Password []byte `gorm:"not null" json:"-"`

	FirstName string `gorm:"size:100;not null" json:"first_name"`
	LastName  string `gorm:"size:100;not null" json:"last_name"`

	Status string `gorm:"size:20;not null;default:'Active'" json:"status"`

	Roles []UserRole `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Role struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Name        string `gorm:"unique;size:50;not null" json:"name"`
	Description string `gorm:"size:255" json:"description"`

	Permissions []RolePermission `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Permission struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Name        string `gorm:"unique;size:100;not null" json:"name"`
	Description string `gorm:"size:255" json:"description"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UserRole struct {
	UserId uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	RoleId uuid.UUID `gorm:"type:uuid;primaryKey" json:"role_id"`

	User *User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Role *Role `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

type RolePermission struct {
	RoleId       uuid.UUID `gorm:"type:uuid;primaryKey" json:"role_id"`
	PermissionId uuid.UUID `gorm:"type:uuid;primaryKey" json:"permission_id"`

	Role       *Role       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Permission *Permission `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

type Report struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Type       string `gorm:"size:50;not null" json:"type"` // Execution Summary, Compliance, Performance
	Parameters string `json:"parameters"`
	FilePath   string `gorm:"size:500" json:"file_path"`

	GeneratedBy uuid.UUID `gorm:"type:uuid" json:"generated_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AllTables lists every entity in migration order, parents before children.
func AllTables() []interface{} {
	return []interface{}{
		&User{}, &Role{}, &Permission{}, &UserRole{}, &RolePermission{},
		&Site{}, &Zone{}, &Camera{},
		&ChecklistTemplate{}, &Checklist{}, &ChecklistStep{}, &CameraMapping{},
		&Execution{}, &StepExecution{}, &Evidence{}, &Exception{}, &Alert{},
		&Report{},
	}
}
