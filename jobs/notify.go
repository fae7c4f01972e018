package jobs

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Notification is one reminder addressed to a user.
type Notification struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Phase    Phase
	Subject  string
	Body     string
}

// Notifier delivers notifications. The delivery channel (mail gateway,
// chat webhook) is owned by the deployment, not the core.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the application log. It stands in
// for a real delivery channel in development and tests.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, notification Notification) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("tenant_id", notification.TenantID.String()),
		slog.String("user_id", notification.UserID.String()),
		slog.String("phase", string(notification.Phase)),
		slog.String("subject", notification.Subject))
	return nil
}
