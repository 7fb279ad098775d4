package teams

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdg-garage/eventra-api/internal/apperr"
	"github.com/gdg-garage/eventra-api/internal/idgen"
	"github.com/gdg-garage/eventra-api/internal/models"
	"github.com/gdg-garage/eventra-api/internal/registrations"
	"github.com/gdg-garage/eventra-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	teams chan models.Team
}

func (n *recordingNotifier) NotifyStudentWelcome(models.User) error { return nil }

func (n *recordingNotifier) NotifyTeamRegistered(team models.Team, _ models.Event, _ []models.User) error {
	n.teams <- team
	return nil
}

func newService(db *gorm.DB) (*Service, *recordingNotifier) {
	ids := idgen.New(db, idgen.WithClock(func() time.Time {
		return time.Date(2026, time.September, 9, 0, 0, 0, 0, time.UTC)
	}))
	rec := &recordingNotifier{teams: make(chan models.Team, 4)}
	regs := registrations.NewService(db, ids, zap.NewNop())
	return NewService(db, ids, regs, rec, zap.NewNop()), rec
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestCreate(t *testing.T) {
	db := testutil.NewDB(t)
	s, _ := newService(db)
	ctx := context.Background()
	event := testutil.CreateEvent(t, db, 2, 4)
	leader := testutil.CreateStudent(t, db)

	view, err := s.Create(ctx, leader.ID, event.ID, "  Byte Me ")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{6}$`), view.TeamCode)
	assert.Equal(t, "Byte Me", view.TeamName)
	assert.Equal(t, models.TeamStatusForming, view.Status)
	assert.Equal(t, 1, view.Size)
	assert.Equal(t, event.Title, view.EventTitle)
	require.NotNil(t, view.Leader)
	assert.Equal(t, leader.ID, view.Leader.ID)
	assert.Empty(t, view.Members)

	_, err = s.Create(ctx, leader.ID, event.ID, "Again")
	assert.ErrorIs(t, err, apperr.ErrAlreadyInTeam)

	_, err = s.Create(ctx, leader.ID, 999, "Ghost")
	assert.ErrorIs(t, err, apperr.ErrEventNotFound)

	_, err = s.Create(ctx, leader.ID, event.ID, " ")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestCreate_MinOneIsCompleteAtOnce(t *testing.T) {
	db := testutil.NewDB(t)
	s, _ := newService(db)
	event := testutil.CreateEvent(t, db, 1, 3)
	leader := testutil.CreateStudent(t, db)

	view, err := s.Create(context.Background(), leader.ID, event.ID, "Solo-ish")
	require.NoError(t, err)
	assert.Equal(t, models.TeamStatusComplete, view.Status)
}

func TestTeamsNotSupported(t *testing.T) {
	db := testutil.NewDB(t)
	s, _ := newService(db)
	ctx := context.Background()
	event := testutil.CreateEvent(t, db, 1, 1)
	leader := testutil.CreateStudent(t, db)
	joiner := testutil.CreateStudent(t, db)

	_, err := s.Create(ctx, leader.ID, event.ID, "Nope")
	assert.ErrorIs(t, err, apperr.ErrTeamsNotSupported)

	team := testutil.CreateTeam(t, db, event, models.TeamStatusComplete, leader)
	_, err = s.Join(ctx, joiner.ID, JoinRequest{EventID: event.ID, TeamCode: team.TeamCode})
	assert.ErrorIs(t, err, apperr.ErrTeamsNotSupported)
}

func TestCreate_AlreadyRegisteredIndividually(t *testing.T) {
	db := testutil.NewDB(t)
	s, _ := newService(db)
	event := testutil.CreateEvent(t, db, 2, 4)
	user := testutil.CreateStudent(t, db)
	require.NoError(t, db.Create(&models.Registration{
		RegistrationID: "REG2026_00099", UserID: user.ID, EventID: event.ID, ParticipantID: "PAR2026_00099",
	}).Error)

	_, err := s.Create(context.Background(), user.ID, event.ID, "Late")
	assert.ErrorIs(t, err, apperr.ErrAlreadyRegisteredIndividually)
}

func TestJoin(t *testing.T) {
	db := testutil.NewDB(t)
	s, _ := newService(db)
	ctx := context.Background()
	event := testutil.CreateEvent(t, db, 3, 3)
	other := testutil.CreateEvent(t, db, 2, 3)
	leader := testutil.CreateStudent(t, db)
	a := testutil.CreateStudent(t, db)
	b := testutil.CreateStudent(t, db)
	c := testutil.CreateStudent(t, db)

	team, err := s.Create(ctx, leader.ID, event.ID, "Trio")
	require.NoError(t, err)

	_, err = s.Join(ctx, a.ID, JoinRequest{EventID: other.ID, TeamCode: team.TeamCode})
	assert.ErrorIs(t, err, apperr.ErrTeamNotFound, "codes are scoped to their event")

	_, err = s.Join(ctx, a.ID, JoinRequest{EventID: event.ID})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	view, err := s.Join(ctx, a.ID, JoinRequest{EventID: event.ID, TeamCode: strings.ToLower(team.TeamCode)})
	require.NoError(t, err)
	assert.Equal(t, 2, view.Size)
	assert.Equal(t, models.TeamStatusForming, view.Status)
	require.Len(t, view.Members, 1)
	assert.Equal(t, a.ID, view.Members[0].ID)

	_, err = s.Join(ctx, a.ID, JoinRequest{EventID: event.ID, TeamID: team.ID})
	assert.ErrorIs(t, err, apperr.ErrAlreadyInTeam)

	_, err = s.Join(ctx, leader.ID, JoinRequest{EventID: event.ID, TeamID: team.ID})
	assert.ErrorIs(t, err, apperr.ErrCannotJoinOwnTeam)

	view, err = s.Join(ctx, b.ID, JoinRequest{EventID: event.ID, TeamID: team.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, view.Size)
	assert.Equal(t, models.TeamStatusComplete, view.Status)

	_, err = s.Join(ctx, c.ID, JoinRequest{EventID: event.ID, TeamID: team.ID})
	assert.ErrorIs(t, err, apperr.ErrTeamFull)
	assert.EqualValues(t, 3, countRows(t, db, &models.TeamMember{}))
}

func TestJoinThenLeaveRestoresState(t *testing.T) {
	db := testutil.NewDB(t)
	s, _ := newService(db)
	ctx := context.Background()
	event := testutil.CreateEvent(t, db, 2, 4)
	first := testutil.CreateStudent(t, db)
	second := testutil.CreateStudent(t, db)
	user := testutil.CreateStudent(t, db)

	teamA, err := s.Create(ctx, first.ID, event.ID, "A")
	require.NoError(t, err)
	teamB, err := s.Create(ctx, second.ID, event.ID, "B")
	require.NoError(t, err)

	joined, err := s.Join(ctx, user.ID, JoinRequest{EventID: event.ID, TeamID: teamA.ID})
	require.NoError(t, err)
	assert.Equal(t, models.TeamStatusComplete, joined.Status)

	after, err := s.Leave(ctx, user.ID, teamA.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TeamStatusForming, after.Status)
	assert.Equal(t, 1, after.Size)
	assert.Empty(t, after.Members)

	_, err = s.Leave(ctx, user.ID, teamA.ID)
	assert.ErrorIs(t, err, apperr.ErrNotAMember)
	_, err = s.Leave(ctx, first.ID, teamA.ID)
	assert.ErrorIs(t, err, apperr.ErrLeaderCannotLeave)
	_, err = s.Leave(ctx, user.ID, 4242)
	assert.ErrorIs(t, err, apperr.ErrTeamNotFound)

	_, err = s.Join(ctx, user.ID, JoinRequest{EventID: event.ID, TeamID: teamB.ID})
	assert.NoError(t, err, "leaving frees the user for another team")
}

func TestRegister_EndToEnd(t *testing.T) {
	db := testutil.NewDB(t)
	s, rec := newService(db)
	ctx := context.Background()
	event := testutil.CreateEvent(t, db, 2, 4)
	leader := testutil.CreateStudent(t, db)
	member := testutil.CreateStudent(t, db)
	late := testutil.CreateStudent(t, db)

	team, err := s.Create(ctx, leader.ID, event.ID, "Pair")
	require.NoError(t, err)
	assert.Equal(t, models.TeamStatusForming, team.Status)

	_, err = s.Register(ctx, leader.ID, team.ID)
	assert.ErrorIs(t, err, apperr.ErrTeamTooSmall)

	joined, err := s.Join(ctx, member.ID, JoinRequest{EventID: event.ID, TeamCode: team.TeamCode})
	require.NoError(t, err)
	assert.Equal(t, models.TeamStatusComplete, joined.Status)

	_, err = s.Register(ctx, member.ID, team.ID)
	assert.ErrorIs(t, err, apperr.ErrNotTeamLeader)

	res, err := s.Register(ctx, leader.ID, team.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TeamStatusRegistered, res.Team.Status)
	require.Len(t, res.Registrations, 2)
	assert.Equal(t, leader.ID, res.Registrations[0].UserID, "leader first")
	assert.Equal(t, member.ID, res.Registrations[1].UserID)

	var atts []models.Attendance
	require.NoError(t, db.Find(&atts).Error)
	require.Len(t, atts, 2)
	for _, a := range atts {
		assert.Equal(t, models.AttendanceNotMarked, a.Status)
	}

	select {
	case got := <-rec.teams:
		assert.Equal(t, team.TeamCode, got.TeamCode)
	case <-time.After(time.Second):
		t.Fatal("team registration was not announced")
	}

	_, err = s.Join(ctx, late.ID, JoinRequest{EventID: event.ID, TeamCode: team.TeamCode})
	assert.ErrorIs(t, err, apperr.ErrTeamAlreadyRegistered)
	_, err = s.Register(ctx, leader.ID, team.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyRegistered)
	_, err = s.Leave(ctx, member.ID, team.ID)
	assert.ErrorIs(t, err, apperr.ErrCannotLeaveRegisteredTeam)
	assert.ErrorIs(t, s.Delete(ctx, leader.ID, team.ID), apperr.ErrCannotDeleteRegisteredTeam)
}

func TestRegister_RollsBackWhenAMemberIsTaken(t *testing.T) {
	db := testutil.NewDB(t)
	s, _ := newService(db)
	ctx := context.Background()
	event := testutil.CreateEvent(t, db, 2, 3)
	leader := testutil.CreateStudent(t, db)
	member := testutil.CreateStudent(t, db)
	team := testutil.CreateTeam(t, db, event, models.TeamStatusComplete, leader, member)
	require.NoError(t, db.Create(&models.Registration{
		RegistrationID: "REG2026_00500", UserID: member.ID, EventID: event.ID, ParticipantID: "PAR2026_00500",
	}).Error)

	_, err := s.Register(ctx, leader.ID, team.ID)
	require.ErrorIs(t, err, apperr.ErrMemberAlreadyRegistered)

	after, err := s.Get(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TeamStatusComplete, after.Status)
	assert.EqualValues(t, 1, countRows(t, db, &models.Registration{}))
	assert.Zero(t, countRows(t, db, &models.Attendance{}))
}

func TestRegister_TooLarge(t *testing.T) {
	db := testutil.NewDB(t)
	s, _ := newService(db)
	event := testutil.CreateEvent(t, db, 2, 3)
	leader := testutil.CreateStudent(t, db)
	team := testutil.CreateTeam(t, db, event, models.TeamStatusComplete, leader,
		testutil.CreateStudent(t, db), testutil.CreateStudent(t, db), testutil.CreateStudent(t, db))

	_, err := s.Register(context.Background(), leader.ID, team.ID)
	assert.ErrorIs(t, err, apperr.ErrTeamTooLarge)
}

func TestDelete(t *testing.T) {
	db := testutil.NewDB(t)
	s, _ := newService(db)
	ctx := context.Background()
	event := testutil.CreateEvent(t, db, 2, 3)
	leader := testutil.CreateStudent(t, db)
	member := testutil.CreateStudent(t, db)

	team, err := s.Create(ctx, leader.ID, event.ID, "Doomed")
	require.NoError(t, err)
	_, err = s.Join(ctx, member.ID, JoinRequest{EventID: event.ID, TeamID: team.ID})
	require.NoError(t, err)

	assert.ErrorIs(t, s.Delete(ctx, member.ID, team.ID), apperr.ErrNotTeamLeader)
	require.NoError(t, s.Delete(ctx, leader.ID, team.ID))

	var n int64
	require.NoError(t, db.Unscoped().Model(&models.Team{}).Count(&n).Error)
	assert.Zero(t, n, "teams are removed for good")
	assert.Zero(t, countRows(t, db, &models.TeamMember{}))

	_, err = s.Create(ctx, member.ID, event.ID, "Fresh start")
	assert.NoError(t, err)
}

func TestMyTeamAndAvailable(t *testing.T) {
	db := testutil.NewDB(t)
	s, _ := newService(db)
	ctx := context.Background()
	event := testutil.CreateEvent(t, db, 2, 3)
	leader := testutil.CreateStudent(t, db)
	member := testutil.CreateStudent(t, db)
	stranger := testutil.CreateStudent(t, db)

	open, err := s.Create(ctx, leader.ID, event.ID, "Open")
	require.NoError(t, err)
	full := testutil.CreateTeam(t, db, event, models.TeamStatusComplete,
		testutil.CreateStudent(t, db), testutil.CreateStudent(t, db), testutil.CreateStudent(t, db))
	sealed := testutil.CreateTeam(t, db, event, models.TeamStatusRegistered, testutil.CreateStudent(t, db))

	_, err = s.Join(ctx, member.ID, JoinRequest{EventID: event.ID, TeamID: open.ID})
	require.NoError(t, err)

	mine, err := s.MyTeam(ctx, member.ID, event.ID)
	require.NoError(t, err)
	assert.Equal(t, open.ID, mine.ID)

	_, err = s.MyTeam(ctx, stranger.ID, event.ID)
	assert.ErrorIs(t, err, apperr.ErrTeamNotFound)

	available, err := s.Available(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, open.ID, available[0].ID)
	assert.Equal(t, 2, available[0].CurrentSize)
	assert.Equal(t, 3, available[0].MaxSize)
	assert.Equal(t, 1, available[0].SlotsAvailable)
	assert.NotEqual(t, full.ID, available[0].ID)
	assert.NotEqual(t, sealed.ID, available[0].ID)

	_, err = s.Available(ctx, 31337)
	assert.ErrorIs(t, err, apperr.ErrEventNotFound)
}

func TestJoin_ConcurrentNeverOverflows(t *testing.T) {
	db := testutil.NewFileDB(t)
	s, _ := newService(db)
	ctx := context.Background()
	event := testutil.CreateEvent(t, db, 2, 3)
	leader := testutil.CreateStudent(t, db)
	team, err := s.Create(ctx, leader.ID, event.ID, "Crowded")
	require.NoError(t, err)

	const joiners = 6
	users := make([]models.User, joiners)
	for i := range users {
		users[i] = testutil.CreateStudent(t, db)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		joined int
		full   int
	)
	for _, u := range users {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			_, err := s.Join(ctx, userID, JoinRequest{EventID: event.ID, TeamID: team.ID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				joined++
			case errors.Is(err, apperr.ErrTeamFull):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(u.ID)
	}
	wg.Wait()

	assert.Equal(t, 2, joined)
	assert.Equal(t, joiners-2, full)

	after, err := s.Get(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, after.Size)
	assert.Len(t, after.Members, 2)
}

func TestRegister_ConcurrentOneWins(t *testing.T) {
	db := testutil.NewFileDB(t)
	s, _ := newService(db)
	ctx := context.Background()
	event := testutil.CreateEvent(t, db, 2, 3)
	leader := testutil.CreateStudent(t, db)
	team := testutil.CreateTeam(t, db, event, models.TeamStatusComplete, leader, testutil.CreateStudent(t, db))

	const attempts = 4
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Register(ctx, leader.ID, team.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, apperr.ErrAlreadyRegistered):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, rejected)
	assert.EqualValues(t, 2, countRows(t, db, &models.Registration{}))
	assert.EqualValues(t, 2, countRows(t, db, &models.Attendance{}))
}
