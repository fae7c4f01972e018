package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/planora-app/planora/internal/jobs"
)

// PlannerNudge targets one open period's planners during PM_RO and
// Finance phases.
type PlannerNudge struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Year     int
	Month    int
}

// UnsignedReminder targets one resource with unsigned actual lines.
type UnsignedReminder struct {
	TenantID     uuid.UUID
	UserID       uuid.UUID
	ResourceName string
	LineCount    int
}

// ApproverReminder targets one approver with pending steps.
type ApproverReminder struct {
	TenantID  uuid.UUID
	UserID    uuid.UUID
	StepCount int
}

// ReminderRepository reads the backlog each phase notifies about.
type ReminderRepository interface {
	PlannerNudges(ctx context.Context, phase Phase, year, month int) ([]PlannerNudge, error)
	UnsignedActuals(ctx context.Context, year, month int) ([]UnsignedReminder, error)
	PendingApprovals(ctx context.Context, year, month int) ([]ApproverReminder, error)
}

// PhaseRunnerJob delivers the reminders for the due notification phases.
type PhaseRunnerJob struct {
	Repo     ReminderRepository
	Notifier Notifier
	Client   *Client
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewPhaseRunnerJob constructs the job handler.
func NewPhaseRunnerJob(repo ReminderRepository, notifier Notifier, client *Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *PhaseRunnerJob {
	return &PhaseRunnerJob{
		Repo:     repo,
		Notifier: notifier,
		Client:   client,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock overrides the clock for deterministic tests.
func (j *PhaseRunnerJob) WithClock(clock func() time.Time) {
	if clock != nil {
		j.clock = clock
	}
}

// HandlePhaseScan enqueues a run task for every phase due today.
func (j *PhaseRunnerJob) HandlePhaseScan(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Client == nil {
		return errors.New("phase scan: dependencies not configured")
	}
	tracker := j.Metrics.Track("phase_scan")
	today := j.clock()
	due := DuePhases(today)
	if len(due) == 0 {
		if j.Logger != nil {
			j.Logger.Info("no notification phases due", slog.String("date", today.Format("2006-01-02")))
		}
		return tracker.End(nil)
	}
	for _, phase := range due {
		if err := j.Client.EnqueueRunPhase(ctx, phase, today.Year(), int(today.Month())); err != nil {
			return tracker.End(fmt.Errorf("enqueue %s: %w", phase, err))
		}
	}
	return tracker.End(nil)
}

// HandleRunPhase delivers all reminders for one phase.
func (j *PhaseRunnerJob) HandleRunPhase(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Repo == nil || j.Notifier == nil {
		return errors.New("run phase: dependencies not configured")
	}
	var payload RunPhasePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track("run_phase_" + string(payload.Phase))
	sent, err := j.runPhase(ctx, payload)
	if j.Logger != nil {
		j.Logger.Info("notification phase finished",
			slog.String("phase", string(payload.Phase)),
			slog.Int("year", payload.Year),
			slog.Int("month", payload.Month),
			slog.Int("sent", sent),
			slog.Any("error", err))
	}
	return tracker.End(err)
}

func (j *PhaseRunnerJob) runPhase(ctx context.Context, payload RunPhasePayload) (int, error) {
	switch payload.Phase {
	case PhasePMRO, PhaseFinance:
		return j.notifyPlanners(ctx, payload)
	case PhaseEmployee:
		return j.notifyUnsigned(ctx, payload)
	case PhaseRODirector:
		return j.notifyApprovers(ctx, payload)
	default:
		return 0, asynq.SkipRetry
	}
}

func (j *PhaseRunnerJob) notifyPlanners(ctx context.Context, payload RunPhasePayload) (int, error) {
	nudges, err := j.Repo.PlannerNudges(ctx, payload.Phase, payload.Year, payload.Month)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, nudge := range nudges {
		err := j.Notifier.Notify(ctx, Notification{
			TenantID: nudge.TenantID,
			UserID:   nudge.UserID,
			Phase:    payload.Phase,
			Subject:  fmt.Sprintf("Planning input due for %04d-%02d", nudge.Year, nudge.Month),
			Body:     "The planning period is open and waiting for your input.",
		})
		if err != nil {
			return sent, err
		}
		sent++
		j.Metrics.AddReminders(nudge.TenantID.String(), 1)
	}
	return sent, nil
}

func (j *PhaseRunnerJob) notifyUnsigned(ctx context.Context, payload RunPhasePayload) (int, error) {
	reminders, err := j.Repo.UnsignedActuals(ctx, payload.Year, payload.Month)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, reminder := range reminders {
		err := j.Notifier.Notify(ctx, Notification{
			TenantID: reminder.TenantID,
			UserID:   reminder.UserID,
			Phase:    payload.Phase,
			Subject:  fmt.Sprintf("%d actual line(s) waiting for your signature", reminder.LineCount),
			Body:     fmt.Sprintf("Actuals recorded for %s in %04d-%02d still need a signature.", reminder.ResourceName, payload.Year, payload.Month),
		})
		if err != nil {
			return sent, err
		}
		sent++
		j.Metrics.AddReminders(reminder.TenantID.String(), 1)
	}
	return sent, nil
}

func (j *PhaseRunnerJob) notifyApprovers(ctx context.Context, payload RunPhasePayload) (int, error) {
	reminders, err := j.Repo.PendingApprovals(ctx, payload.Year, payload.Month)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, reminder := range reminders {
		err := j.Notifier.Notify(ctx, Notification{
			TenantID: reminder.TenantID,
			UserID:   reminder.UserID,
			Phase:    payload.Phase,
			Subject:  fmt.Sprintf("%d approval step(s) waiting for you", reminder.StepCount),
			Body:     fmt.Sprintf("Signed actuals for %04d-%02d are waiting for your decision.", payload.Year, payload.Month),
		})
		if err != nil {
			return sent, err
		}
		sent++
		j.Metrics.AddReminders(reminder.TenantID.String(), 1)
	}
	return sent, nil
}
