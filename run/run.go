// Package run records capture runs and their per-shot results.
package run

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrRunNotFound is returned when a run is not found.
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidConfigPath is returned when config_path is not set.
	ErrInvalidConfigPath = errors.New("config_path is required")

	// ErrInvalidStatus is returned when status is invalid.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrRunNotRunning is returned when completing a run that is not running.
	ErrRunNotRunning = errors.New("run is not running")

	// ErrRunAlreadyStarted is returned when starting a run twice.
	ErrRunAlreadyStarted = errors.New("run already started")
)

// Status represents the status of a run.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusPassed, StatusFailed:
		return true
	default:
		return false
	}
}

// IsFinal reports whether the run has finished.
func (s Status) IsFinal() bool {
	return s == StatusPassed || s == StatusFailed
}

// Run is one execution of a capture config.
type Run struct {
	ID            uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	ConfigPath    string     `json:"config_path" gorm:"type:varchar(1024);not null"`
	BaseDomain    string     `json:"base_domain" gorm:"type:varchar(255)"`
	CompareDomain string     `json:"compare_domain" gorm:"type:varchar(255)"`
	Directory     string     `json:"directory" gorm:"type:varchar(1024)"`
	Mode          string     `json:"mode" gorm:"type:varchar(20)"`
	Threshold     float64    `json:"threshold"`
	Status        Status     `json:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_runs_status"`
	MaxDiff       float64    `json:"max_diff"`
	Message       string     `json:"message,omitempty" gorm:"type:text"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at" gorm:"index:idx_runs_created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// BeforeCreate hook to generate UUID before creating a new run
func (r *Run) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Validate checks the required fields.
func (r *Run) Validate() error {
	if r.ConfigPath == "" {
		return ErrInvalidConfigPath
	}
	if !r.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// Start sets started_at and moves the run to running.
func (r *Run) Start() error {
	if r.StartedAt != nil {
		return ErrRunAlreadyStarted
	}
	now := time.Now().UTC()
	r.StartedAt = &now
	r.Status = StatusRunning
	return nil
}

// Complete sets completed_at and a final status. A non-empty message
// replaces the stored one.
func (r *Run) Complete(status Status, message string) error {
	if r.Status != StatusRunning {
		return ErrRunNotRunning
	}
	if !status.IsFinal() {
		return ErrInvalidStatus
	}
	now := time.Now().UTC()
	r.CompletedAt = &now
	r.Status = status
	if message != "" {
		r.Message = message
	}
	return nil
}

// Duration is the time between start and completion, or zero.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(*r.StartedAt)
}

// Result is the comparison outcome of one label at one size.
type Result struct {
	ID        uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	RunID     uuid.UUID `json:"run_id" gorm:"type:char(36);not null;index:idx_results_run_id"`
	Label     string    `json:"label" gorm:"type:varchar(255);not null"`
	Size      string    `json:"size" gorm:"type:varchar(32);not null"`
	Diff      float64   `json:"diff"`
	Passed    bool      `json:"passed"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate hook to generate UUID before creating a new result
func (r *Result) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
