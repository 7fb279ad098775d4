package notifier

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/gdg-garage/eventra-api/internal/config"
	"github.com/gdg-garage/eventra-api/internal/models"
)

type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
}

// NewDiscordNotifier opens a bot session for posting to the notifications
// channel.
func NewDiscordNotifier(cfg *config.Config) (*DiscordNotifier, error) {
	if cfg.DiscordBotToken == "" {
		return nil, fmt.Errorf("discord bot token is empty")
	}
	if cfg.DiscordNotificationsChannelID == "" {
		return nil, fmt.Errorf("discord channel ID is empty")
	}
	session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &DiscordNotifier{
		session:   session,
		channelID: cfg.DiscordNotificationsChannelID,
	}, nil
}

func (n *DiscordNotifier) NotifyStudentWelcome(user models.User) error {
	return n.send(welcomeMessage(user))
}

func (n *DiscordNotifier) NotifyTeamRegistered(team models.Team, event models.Event, members []models.User) error {
	return n.send(teamRegisteredMessage(team, event, members))
}

func (n *DiscordNotifier) send(message string) error {
	if n.session == nil {
		return fmt.Errorf("discord session is nil")
	}
	if _, err := n.session.ChannelMessageSend(n.channelID, message); err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	return nil
}

func welcomeMessage(user models.User) string {
	var studentID string
	if user.StudentID != nil {
		studentID = *user.StudentID
	}
	return fmt.Sprintf("👋 **New Student**\n**Name:** %s\n**College:** %s\n**Student ID:** %s",
		user.Name, user.College, studentID)
}

func teamRegisteredMessage(team models.Team, event models.Event, members []models.User) string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	return fmt.Sprintf("🎉 **Team Registered**\n**Event:** %s\n**Team:** %s (%s)\n**Members (%d):** %s",
		event.Title, team.TeamName, team.TeamCode, len(members), strings.Join(names, ", "))
}
