package domain

import "time"

// TaskStatus represents the execution status of a report task.
// Values include TaskStatusPending, TaskStatusRunning, TaskStatusSuccess, and TaskStatusFailed.
type TaskStatus int

const (
	TaskStatusPending TaskStatus = 0
	TaskStatusRunning TaskStatus = 1
	TaskStatusSuccess TaskStatus = 2
	TaskStatusFailed  TaskStatus = 3
)

// String returns the lowercase name of the status.
func (s TaskStatus) String() string {
	switch s {
	case TaskStatusPending:
		return "pending"
	case TaskStatusRunning:
		return "running"
	case TaskStatusSuccess:
		return "success"
	case TaskStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ReportTask is one unit of report download work, created by the external
// scheduler. Only the status, message, request URL, duration and run count
// are written by this service.
type ReportTask struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	AdnID      int        `gorm:"not null;default:0" json:"adn_id"`
	AdnAppID   string     `gorm:"type:varchar(128);index:idx_report_tasks_app_day" json:"adn_app_id"`
	AdnAPIKey  string     `gorm:"column:adn_api_key;type:varchar(256)" json:"-"`
	Day        string     `gorm:"type:varchar(10);not null;index:idx_report_tasks_app_day" json:"day"`
	Status     TaskStatus `gorm:"not null;default:0;index:idx_report_tasks_status" json:"status"`
	RunCount   int        `gorm:"not null;default:0" json:"run_count"`
	Msg        string     `gorm:"type:text" json:"msg,omitempty"`
	ReqURL     string     `gorm:"column:req_url;type:text" json:"-"` // carries the API key
	DurationMs int64      `gorm:"not null;default:0" json:"duration_ms"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName returns the database table name for ReportTask.
func (ReportTask) TableName() string {
	return "report_tasks"
}
