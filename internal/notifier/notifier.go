// Package notifier announces sign-ups and team registrations. Delivery is best
// effort: callers fire notifications after their transaction commits and a
// failed send never undoes the operation.
package notifier

import (
	"github.com/gdg-garage/eventra-api/internal/models"
	"go.uber.org/zap"
)

type Notifier interface {
	NotifyStudentWelcome(user models.User) error
	NotifyTeamRegistered(team models.Team, event models.Event, members []models.User) error
}

// LogNotifier writes notifications to the log. It stands in when no Discord
// bot is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notifier")}
}

func (n *LogNotifier) NotifyStudentWelcome(user models.User) error {
	n.log.Info("student welcome",
		zap.Uint("user_id", user.ID),
		zap.String("email", user.Email),
		zap.Stringp("student_id", user.StudentID))
	return nil
}

func (n *LogNotifier) NotifyTeamRegistered(team models.Team, event models.Event, members []models.User) error {
	n.log.Info("team registered",
		zap.String("team_code", team.TeamCode),
		zap.String("event", event.Title),
		zap.Int("members", len(members)))
	return nil
}

// Async runs send in the background and logs its failure.
func Async(log *zap.Logger, what string, send func() error) {
	go func() {
		if err := send(); err != nil {
			log.Warn("notification failed", zap.String("notification", what), zap.Error(err))
		}
	}()
}
