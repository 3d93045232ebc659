package models

// MaintenanceRun records one pass of a maintenance task
type MaintenanceRun struct {
	ID         int64  `json:"id" db:"id"`
	Task       string `json:"task" db:"task"`
	Status     string `json:"status" db:"status"` // running, completed, failed
	StartedMs  int64  `json:"started" db:"started_ms"`
	FinishedMs *int64 `json:"finished,omitempty" db:"finished_ms"`
	Affected   int    `json:"affected" db:"affected"`
	Error      string `json:"error,omitempty" db:"error"`
}

// RunStatus constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)
