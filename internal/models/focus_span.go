package models

import (
	"time"

	"gorm.io/gorm"
)

// FocusSpan is one uninterrupted stretch of focus on a workspace
type FocusSpan struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Timestamp     time.Time      `gorm:"not null;index" json:"timestamp"` // When focus arrived
	WorkspaceID   int64          `gorm:"not null;index" json:"workspace_id"`
	WorkspaceName string         `gorm:"not null;index" json:"workspace_name"`
	Monitor       string         `gorm:"not null" json:"monitor"`
	Duration      int64          `gorm:"not null;default:0" json:"duration"` // Duration in seconds
	Compositor    string         `gorm:"not null" json:"compositor"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

type WorkspaceSummary struct {
	WorkspaceName string  `json:"workspace_name"`
	TotalSeconds  int64   `json:"total_seconds"`
	TotalMinutes  float64 `json:"total_minutes"`
	TotalHours    float64 `json:"total_hours"`
	SpanCount     int     `json:"span_count"`
	Percentage    float64 `json:"percentage,omitempty"`
}

type ReportPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Type  string    `json:"type"` // "day", "week", "month"
}

type Report struct {
	Period       ReportPeriod       `json:"period"`
	Workspaces   []WorkspaceSummary `json:"workspaces"`
	TotalSeconds int64              `json:"total_seconds"`
	TotalMinutes float64            `json:"total_minutes"`
	TotalHours   float64            `json:"total_hours"`
	GeneratedAt  time.Time          `json:"generated_at"`
}
