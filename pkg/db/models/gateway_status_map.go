package models

import "time"

// GatewayStatusMap maps a connector error to the orchestrator's reaction.
type GatewayStatusMap struct {
	Connector      string    `gorm:"column:connector;primaryKey"`
	Flow           string    `gorm:"column:flow;primaryKey"`
	SubFlow        string    `gorm:"column:sub_flow;primaryKey"`
	Code           string    `gorm:"column:code;primaryKey"`
	Message        string    `gorm:"column:message;primaryKey"`
	Status         string    `gorm:"column:status;not null"`
	RouterError    *string   `gorm:"column:router_error"`
	Decision       string    `gorm:"column:decision;not null"`
	StepUpPossible bool      `gorm:"column:step_up_possible;not null;default:false"`
	UnifiedCode    *string   `gorm:"column:unified_code"`
	UnifiedMessage *string   `gorm:"column:unified_message"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	LastModified   time.Time `gorm:"column:last_modified;autoUpdateTime"`
}

func (GatewayStatusMap) TableName() string { return "gateway_status_map" }
