package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/juspay/hyperswitch-sub035/pkg/enums"
)

// ProcessTracker is a durable scheduled task consumed by the scheduler.
type ProcessTracker struct {
	ID             string                      `gorm:"column:id;primaryKey"`
	Name           string                      `gorm:"column:name;not null"`
	Tag            datatypes.JSONSlice[string] `gorm:"column:tag"`
	Runner         string                      `gorm:"column:runner;not null;index"`
	RetryCount     int                         `gorm:"column:retry_count;not null;default:0"`
	FailureCount   int                         `gorm:"column:failure_count;not null;default:0"`
	ScheduleTime   *time.Time                  `gorm:"column:schedule_time;index"`
	Rule           string                      `gorm:"column:rule;not null;default:''"`
	TrackingData   datatypes.JSON              `gorm:"column:tracking_data"`
	BusinessStatus string                      `gorm:"column:business_status;not null"`
	Status         enums.ProcessTrackerStatus  `gorm:"column:status;not null"`
	Event          datatypes.JSONSlice[string] `gorm:"column:event"`
	CreatedAt      time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (ProcessTracker) TableName() string { return "process_tracker" }
