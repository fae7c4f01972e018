package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPhaseScan checks which notification phases are due today.
	TaskPhaseScan = "notify:phase_scan"
	// TaskRunPhase delivers the reminders for one notification phase.
	TaskRunPhase = "notify:run_phase"
)

// RunPhasePayload identifies the phase and month to deliver.
type RunPhasePayload struct {
	Phase Phase `json:"phase"`
	Year  int   `json:"year"`
	Month int   `json:"month"`
}

// NewPhaseScanTask constructs the daily scan task.
func NewPhaseScanTask() *asynq.Task {
	return asynq.NewTask(TaskPhaseScan, nil, asynq.Queue(QueueDefault))
}

// NewRunPhaseTask constructs a task delivering one phase's reminders.
func NewRunPhaseTask(phase Phase, year, month int) (*asynq.Task, error) {
	body, err := json.Marshal(RunPhasePayload{Phase: phase, Year: year, Month: month})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRunPhase, body, asynq.Queue(QueueDefault)), nil
}
