// Package testutil builds fixtures shared by the service tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gdg-garage/eventra-api/internal/database"
	"github.com/gdg-garage/eventra-api/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var seq atomic.Int64

func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// NewFileDB opens a migrated database file with a real connection pool, for
// tests that race writers against each other.
func NewFileDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "eventra.db"), 4, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func CreateUser(t *testing.T, db *gorm.DB, role models.Role) models.User {
	t.Helper()
	n := seq.Add(1)
	user := models.User{
		Name:    fmt.Sprintf("User %d", n),
		Email:   fmt.Sprintf("user%d@example.com", n),
		Mobile:  fmt.Sprintf("90000%05d", n),
		College: "GDG College",
		Role:    role,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func CreateStudent(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	return CreateUser(t, db, models.RoleStudent)
}

func CreateEvent(t *testing.T, db *gorm.DB, minSize, maxSize int) models.Event {
	t.Helper()
	n := seq.Add(1)
	event := models.Event{
		EventCode:   fmt.Sprintf("EVT2026_%05d", n),
		Title:       fmt.Sprintf("Event %d", n),
		Description: "description",
		About:       "about",
		Date:        time.Date(2026, time.November, 1, 9, 0, 0, 0, time.UTC),
		Venue:       "Main Hall",
		TotalPrize:  "N/A",
		MinTeamSize: minSize,
		MaxTeamSize: maxSize,
	}
	require.NoError(t, db.Create(&event).Error)
	return event
}

func AssignCoordinator(t *testing.T, db *gorm.DB, eventID, userID uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.EventCoordinator{EventID: eventID, UserID: userID}).Error)
}

// CreateTeam stores a team led by leader with the given members, bypassing
// the team manager's rules.
func CreateTeam(t *testing.T, db *gorm.DB, event models.Event, status models.TeamStatus, leader models.User, members ...models.User) models.Team {
	t.Helper()
	n := seq.Add(1)
	team := models.Team{
		TeamCode: fmt.Sprintf("T%05d", n%100000),
		TeamName: fmt.Sprintf("Team %d", n),
		EventID:  event.ID,
		LeaderID: leader.ID,
		Size:     1 + len(members),
		Status:   status,
	}
	require.NoError(t, db.Create(&team).Error)
	require.NoError(t, db.Create(&models.TeamMember{
		TeamID: team.ID, EventID: event.ID, UserID: leader.ID, Role: models.TeamRoleLeader, JoinedAt: time.Now(),
	}).Error)
	for _, m := range members {
		require.NoError(t, db.Create(&models.TeamMember{
			TeamID: team.ID, EventID: event.ID, UserID: m.ID, Role: models.TeamRoleMember, JoinedAt: time.Now(),
		}).Error)
	}
	return team
}
