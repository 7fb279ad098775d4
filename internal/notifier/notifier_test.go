package notifier

import (
	"errors"
	"testing"
	"time"

	"github.com/gdg-garage/eventra-api/internal/config"
	"github.com/gdg-garage/eventra-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMessages(t *testing.T) {
	sid := "STU2026_00007"
	msg := welcomeMessage(models.User{Name: "Ada", College: "GDG", StudentID: &sid})
	assert.Contains(t, msg, "Ada")
	assert.Contains(t, msg, sid)

	msg = teamRegisteredMessage(
		models.Team{TeamName: "Byte Me", TeamCode: "AB12CD"},
		models.Event{Title: "Hackathon"},
		[]models.User{{Name: "Ada"}, {Name: "Linus"}},
	)
	assert.Contains(t, msg, "Hackathon")
	assert.Contains(t, msg, "Byte Me (AB12CD)")
	assert.Contains(t, msg, "Members (2):** Ada, Linus")
}

func TestNewDiscordNotifier_RequiresConfig(t *testing.T) {
	_, err := NewDiscordNotifier(&config.Config{})
	assert.Error(t, err)

	_, err = NewDiscordNotifier(&config.Config{DiscordBotToken: "token"})
	assert.Error(t, err)
}

func TestDiscordNotifier_NilSession(t *testing.T) {
	n := &DiscordNotifier{channelID: "1"}
	assert.Error(t, n.NotifyStudentWelcome(models.User{}))
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.NotifyTeamRegistered(models.Team{TeamCode: "AB12CD"}, models.Event{Title: "Quiz"}, make([]models.User, 3)))
	entries := logs.FilterMessage("team registered").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "AB12CD", entries[0].ContextMap()["team_code"])
	assert.EqualValues(t, 3, entries[0].ContextMap()["members"])
}

func TestAsync_LogsFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	Async(zap.New(core), "welcome", func() error { return errors.New("boom") })

	require.Eventually(t, func() bool {
		return logs.FilterMessage("notification failed").Len() == 1
	}, time.Second, 10*time.Millisecond)
}
