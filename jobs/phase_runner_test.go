package jobs

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryReminderRepo struct {
	nudges    []PlannerNudge
	unsigned  []UnsignedReminder
	approvals []ApproverReminder
}

func (r *memoryReminderRepo) PlannerNudges(ctx context.Context, phase Phase, year, month int) ([]PlannerNudge, error) {
	return r.nudges, nil
}

func (r *memoryReminderRepo) UnsignedActuals(ctx context.Context, year, month int) ([]UnsignedReminder, error) {
	return r.unsigned, nil
}

func (r *memoryReminderRepo) PendingApprovals(ctx context.Context, year, month int) ([]ApproverReminder, error) {
	return r.approvals, nil
}

type recordingNotifier struct {
	sent []Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, notification Notification) error {
	n.sent = append(n.sent, notification)
	return nil
}

func TestRunPhaseEmployeeNotifiesUnsigned(t *testing.T) {
	repo := &memoryReminderRepo{
		unsigned: []UnsignedReminder{
			{TenantID: uuid.New(), UserID: uuid.New(), ResourceName: "Riley", LineCount: 2},
			{TenantID: uuid.New(), UserID: uuid.New(), ResourceName: "Sam", LineCount: 1},
		},
	}
	notifier := &recordingNotifier{}
	job := NewPhaseRunnerJob(repo, notifier, nil, slog.Default(), nil)

	task, err := NewRunPhaseTask(PhaseEmployee, 2026, 3)
	require.NoError(t, err)
	require.NoError(t, job.HandleRunPhase(context.Background(), task))

	require.Len(t, notifier.sent, 2)
	require.Equal(t, PhaseEmployee, notifier.sent[0].Phase)
	require.Contains(t, notifier.sent[0].Subject, "2 actual line(s)")
	require.Contains(t, notifier.sent[0].Body, "Riley")
}

func TestRunPhaseRODirectorNotifiesApprovers(t *testing.T) {
	approverID := uuid.New()
	repo := &memoryReminderRepo{
		approvals: []ApproverReminder{{TenantID: uuid.New(), UserID: approverID, StepCount: 3}},
	}
	notifier := &recordingNotifier{}
	job := NewPhaseRunnerJob(repo, notifier, nil, slog.Default(), nil)

	task, err := NewRunPhaseTask(PhaseRODirector, 2026, 3)
	require.NoError(t, err)
	require.NoError(t, job.HandleRunPhase(context.Background(), task))

	require.Len(t, notifier.sent, 1)
	require.Equal(t, approverID, notifier.sent[0].UserID)
	require.Contains(t, notifier.sent[0].Subject, "3 approval step(s)")
}

func TestRunPhasePlannerNudges(t *testing.T) {
	repo := &memoryReminderRepo{
		nudges: []PlannerNudge{{TenantID: uuid.New(), UserID: uuid.New(), Year: 2026, Month: 3}},
	}
	notifier := &recordingNotifier{}
	job := NewPhaseRunnerJob(repo, notifier, nil, slog.Default(), nil)

	task, err := NewRunPhaseTask(PhasePMRO, 2026, 3)
	require.NoError(t, err)
	require.NoError(t, job.HandleRunPhase(context.Background(), task))

	require.Len(t, notifier.sent, 1)
	require.Contains(t, notifier.sent[0].Subject, "2026-03")
}
