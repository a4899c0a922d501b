package models

import (
	"time"

	"gorm.io/gorm"
)

// Execution kinds.
const (
	// KindPlugin marks calls of operations generated from reptor plugins.
	KindPlugin = "plugin"
	// KindCustom marks calls of the hand-written convenience operations.
	KindCustom = "custom"
)

// ToolExecution is one recorded tool call. ExitCode is set only for plugin runs that
// started a process.
type ToolExecution struct {
	ID           uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	SessionID    string         `gorm:"type:varchar(64);index" json:"session_id,omitempty"`
	ToolName     string         `gorm:"type:varchar(128);index;not null" json:"tool_name"`
	Kind         string         `gorm:"type:varchar(16);index" json:"kind"`
	InputJSON    string         `gorm:"type:text" json:"input_json"`
	OutputJSON   string         `gorm:"type:text" json:"output_json,omitempty"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`
	ExitCode     *int           `json:"exit_code,omitempty"`
	DurationMs   int64          `json:"duration_ms"`
	Success      bool           `gorm:"index" json:"success"`
}

// Duration returns the recorded call duration.
func (e *ToolExecution) Duration() time.Duration {
	return time.Duration(e.DurationMs) * time.Millisecond
}

// Failed reports whether the call ended in an error.
func (e *ToolExecution) Failed() bool {
	return !e.Success || e.ErrorMessage != ""
}
