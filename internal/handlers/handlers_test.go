package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/gdg-garage/eventra-api/internal/apperr"
	"github.com/gdg-garage/eventra-api/internal/attendance"
	"github.com/gdg-garage/eventra-api/internal/auth"
	"github.com/gdg-garage/eventra-api/internal/config"
	"github.com/gdg-garage/eventra-api/internal/events"
	"github.com/gdg-garage/eventra-api/internal/idgen"
	"github.com/gdg-garage/eventra-api/internal/models"
	"github.com/gdg-garage/eventra-api/internal/notifier"
	"github.com/gdg-garage/eventra-api/internal/registrations"
	"github.com/gdg-garage/eventra-api/internal/teams"
	"github.com/gdg-garage/eventra-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db  *gorm.DB
	cfg *config.Config
	h   Handlers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := &config.Config{
		JWTSecret:   "test-secret-0123456789",
		CORSOrigins: []string{"http://localhost:3000"},
	}
	log := zap.NewNop()
	ids := idgen.New(db)
	notify := notifier.NewLogNotifier(log)
	regs := registrations.NewService(db, ids, log)
	authHandler := auth.NewAuthHandler(cfg, db, ids, notify, log)

	return &fixture{
		db:  db,
		cfg: cfg,
		h: Handlers{
			Auth:          authHandler,
			Events:        NewEventHandler(events.NewService(db, ids, log), authHandler),
			Teams:         NewTeamHandler(teams.NewService(db, ids, regs, notify, log), authHandler),
			Registrations: NewRegistrationHandler(regs, authHandler),
			Attendance:    NewAttendanceHandler(attendance.NewService(db, ids, log), authHandler),
			APIKeys:       NewAPIKeyHandler(db, authHandler, log),
		},
	}
}

func as(user models.User) context.Context {
	return auth.WithUserID(context.Background(), user.ID)
}

func TestEventBodyTeamBounds(t *testing.T) {
	tests := []struct {
		name             string
		body             EventBody
		wantMin, wantMax int
	}{
		{"nothing sent", EventBody{}, 1, 1},
		{"legacy team_size", EventBody{TeamSize: 4}, 4, 4},
		{"explicit bounds win", EventBody{TeamSize: 4, MinTeamSize: 2, MaxTeamSize: 3}, 2, 3},
		{"lone min caps max", EventBody{MinTeamSize: 3}, 3, 3},
		{"lone max", EventBody{MaxTeamSize: 5}, 1, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			minSize, maxSize := tt.body.teamBounds()
			assert.Equal(t, tt.wantMin, minSize)
			assert.Equal(t, tt.wantMax, maxSize)
		})
	}
}

func createEvent(t *testing.T, f *fixture, admin models.User, body EventBody) *events.EventView {
	t.Helper()
	in := &CreateEventInput{Body: body}
	if in.Body.Title == "" {
		in.Body.Title = "Hackathon"
	}
	in.Body.Description = "24h build"
	in.Body.About = "about"
	in.Body.Venue = "Main Hall"
	in.Body.Date = time.Date(2026, time.December, 5, 9, 0, 0, 0, time.UTC)
	out, err := f.h.Events.HandleCreate(as(admin), in)
	require.NoError(t, err)
	return out.Body.Event
}

func TestEventHandler_CreateRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	student := testutil.CreateStudent(t, f.db)

	in := &CreateEventInput{}
	in.Body.Title = "Hackathon"
	_, err := f.h.Events.HandleCreate(as(student), in)
	assert.ErrorIs(t, err, apperr.ErrInsufficientRole)

	_, err = f.h.Events.HandleCreate(context.Background(), in)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestEventHandler_LegacyTeamSize(t *testing.T) {
	f := newFixture(t)
	admin := testutil.CreateUser(t, f.db, models.RoleAdmin)

	view := createEvent(t, f, admin, EventBody{TeamSize: 3})
	assert.Equal(t, 3, view.MinTeamSize)
	assert.Equal(t, 3, view.MaxTeamSize)
	assert.Equal(t, "N/A", view.TotalPrize)

	upd := &UpdateEventInput{ID: view.ID}
	size := 2
	upd.Body.TeamSize = &size
	out, err := f.h.Events.HandleUpdate(as(admin), upd)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Body.Event.MinTeamSize)
	assert.Equal(t, 2, out.Body.Event.MaxTeamSize)
}

func TestTeamFlowThroughHandlers(t *testing.T) {
	f := newFixture(t)
	admin := testutil.CreateUser(t, f.db, models.RoleAdmin)
	leader := testutil.CreateStudent(t, f.db)
	second := testutil.CreateStudent(t, f.db)
	late := testutil.CreateStudent(t, f.db)
	event := createEvent(t, f, admin, EventBody{MinTeamSize: 2, MaxTeamSize: 4})

	create := &CreateTeamInput{}
	create.Body.EventID = event.ID
	create.Body.TeamName = "Gophers"
	team, err := f.h.Teams.HandleCreate(as(leader), create)
	require.NoError(t, err)
	assert.Equal(t, models.TeamStatusForming, team.Body.Team.Status)

	join := &JoinTeamInput{}
	join.Body.EventID = event.ID
	join.Body.TeamCode = team.Body.Team.TeamCode
	joined, err := f.h.Teams.HandleJoin(as(second), join)
	require.NoError(t, err)
	assert.Equal(t, models.TeamStatusComplete, joined.Body.Team.Status)
	require.NotNil(t, joined.Body.Team.Leader)
	assert.Equal(t, leader.ID, joined.Body.Team.Leader.ID)
	require.Len(t, joined.Body.Team.Members, 1)
	assert.Equal(t, second.ID, joined.Body.Team.Members[0].ID)

	// Leaving hands back the team as it stands afterwards.
	_, err = f.h.Teams.HandleJoin(as(late), join)
	require.NoError(t, err)
	left, err := f.h.Teams.HandleLeave(as(late), &TeamIDInput{TeamID: team.Body.Team.ID})
	require.NoError(t, err)
	assert.Equal(t, "Successfully left the team", left.Body.Message)
	assert.Equal(t, 2, left.Body.Team.Size)
	assert.Len(t, left.Body.Team.Members, 1)

	// Only the leader registers.
	_, err = f.h.Teams.HandleRegister(as(second), &TeamIDInput{TeamID: team.Body.Team.ID})
	assert.ErrorIs(t, err, apperr.ErrNotTeamLeader)

	reg, err := f.h.Teams.HandleRegister(as(leader), &TeamIDInput{TeamID: team.Body.Team.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Body.RegistrationsCount)
	assert.Equal(t, models.TeamStatusRegistered, reg.Body.Team.Status)

	_, err = f.h.Teams.HandleJoin(as(late), join)
	assert.ErrorIs(t, err, apperr.ErrTeamAlreadyRegistered)

	mine, err := f.h.Registrations.HandleMine(as(second), &MyRegistrationsInput{})
	require.NoError(t, err)
	require.Len(t, mine.Body, 1)
	require.NotNil(t, mine.Body[0].TeamInfo)
	assert.Equal(t, "Gophers", mine.Body[0].TeamInfo.TeamName)

	// Individual enrollment in a team event points at the team flow.
	enroll := &RegistrationRequest{}
	enroll.Body.EventID = event.ID
	_, err = f.h.Registrations.HandleRegister(as(late), enroll)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TeamRequired", appErr.Code)
	assert.True(t, appErr.RequiresTeam)
	assert.Equal(t, 2, appErr.MinTeamSize)
	assert.Equal(t, 4, appErr.MaxTeamSize)
}

func TestAttendanceThroughHandlers(t *testing.T) {
	f := newFixture(t)
	admin := testutil.CreateUser(t, f.db, models.RoleAdmin)
	coordinator := testutil.CreateUser(t, f.db, models.RoleCoordinator)
	outsider := testutil.CreateUser(t, f.db, models.RoleCoordinator)
	student := testutil.CreateStudent(t, f.db)
	event := createEvent(t, f, admin, EventBody{})

	assign := &CoordinatorsInput{ID: event.ID}
	assign.Body.CoordinatorIDs = []uint{coordinator.ID}
	_, err := f.h.Events.HandleAssignCoordinators(as(admin), assign)
	require.NoError(t, err)

	enroll := &RegistrationRequest{}
	enroll.Body.EventID = event.ID
	enrolled, err := f.h.Registrations.HandleRegister(as(student), enroll)
	require.NoError(t, err)
	regID := enrolled.Body.Registration.ID

	mark := &MarkAttendanceInput{}
	mark.Body.RegistrationID = regID
	mark.Body.Status = models.AttendancePresent

	_, err = f.h.Attendance.HandleMark(as(outsider), mark)
	assert.ErrorIs(t, err, apperr.ErrAccessDenied)
	_, err = f.h.Attendance.HandleMark(as(admin), mark)
	assert.ErrorIs(t, err, apperr.ErrInsufficientRole)

	marked, err := f.h.Attendance.HandleMark(as(coordinator), mark)
	require.NoError(t, err)
	assert.Equal(t, models.AttendancePresent, marked.Body.Attendance.Status)

	summary, err := f.h.Attendance.HandleEvent(as(admin), &EventAttendanceInput{EventID: event.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Body.Summary.Present)
	assert.InDelta(t, 100.0, summary.Body.Summary.AttendancePercentage, 0.001)

	_, err = f.h.Registrations.HandleEventParticipants(as(outsider), &EventParticipantsInput{EventID: event.ID})
	assert.ErrorIs(t, err, apperr.ErrAccessDenied)
	list, err := f.h.Registrations.HandleEventParticipants(as(coordinator), &EventParticipantsInput{EventID: event.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Body.Total)
}

func TestAllRegistrationsFilter(t *testing.T) {
	f := newFixture(t)
	admin := testutil.CreateUser(t, f.db, models.RoleAdmin)
	student := testutil.CreateStudent(t, f.db)
	first := createEvent(t, f, admin, EventBody{Title: "Quiz"})
	second := createEvent(t, f, admin, EventBody{Title: "Talk"})

	for _, id := range []uint{first.ID, second.ID} {
		in := &RegistrationRequest{}
		in.Body.EventID = id
		_, err := f.h.Registrations.HandleRegister(as(student), in)
		require.NoError(t, err)
	}

	all, err := f.h.Registrations.HandleAll(as(admin), &AllRegistrationsInput{})
	require.NoError(t, err)
	assert.Len(t, all.Body, 2)

	filtered, err := f.h.Registrations.HandleAll(as(admin), &AllRegistrationsInput{EventID: second.ID})
	require.NoError(t, err)
	assert.Len(t, filtered.Body, 1)

	_, err = f.h.Registrations.HandleAll(as(student), &AllRegistrationsInput{})
	assert.ErrorIs(t, err, apperr.ErrInsufficientRole)
}

func TestAPIKeyHandler(t *testing.T) {
	f := newFixture(t)
	user := testutil.CreateStudent(t, f.db)
	other := testutil.CreateStudent(t, f.db)

	in := &CreateAPIKeyInput{}
	in.Body.Name = "scanner"
	created, err := f.h.APIKeys.HandleCreate(as(user), in)
	require.NoError(t, err)
	assert.True(t, len(created.Body.Key) > 40)
	assert.Equal(t, apiKeyPrefix, created.Body.Key[:len(apiKeyPrefix)])

	list, err := f.h.APIKeys.HandleList(as(user), &ListAPIKeysInput{})
	require.NoError(t, err)
	require.Len(t, list.Body, 1)
	assert.Equal(t, "..."+created.Body.Key[len(created.Body.Key)-4:], list.Body[0].Key)

	past := time.Now().Add(-time.Hour)
	in.Body.ExpiresAt = &past
	_, err = f.h.APIKeys.HandleCreate(as(user), in)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = f.h.APIKeys.HandleDelete(as(other), &DeleteAPIKeyInput{ID: created.Body.ID})
	assert.ErrorIs(t, err, apperr.ErrAPIKeyNotFound)
	_, err = f.h.APIKeys.HandleDelete(as(user), &DeleteAPIKeyInput{ID: created.Body.ID})
	require.NoError(t, err)

	list, err = f.h.APIKeys.HandleList(as(user), &ListAPIKeysInput{})
	require.NoError(t, err)
	assert.Empty(t, list.Body)
}
