// Package teams runs the team lifecycle: forming ⇄ complete → registered.
// Registered is terminal; nothing joins, leaves or deletes a registered team.
package teams

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gdg-garage/eventra-api/internal/apperr"
	"github.com/gdg-garage/eventra-api/internal/database"
	"github.com/gdg-garage/eventra-api/internal/events"
	"github.com/gdg-garage/eventra-api/internal/idgen"
	"github.com/gdg-garage/eventra-api/internal/models"
	"github.com/gdg-garage/eventra-api/internal/notifier"
	"github.com/gdg-garage/eventra-api/internal/registrations"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	ids    *idgen.Generator
	regs   *registrations.Service
	notify notifier.Notifier
	log    *zap.Logger
}

func NewService(db *gorm.DB, ids *idgen.Generator, regs *registrations.Service, notify notifier.Notifier, log *zap.Logger) *Service {
	return &Service{
		db:     db,
		ids:    ids,
		regs:   regs,
		notify: notify,
		log:    log.Named("teams"),
	}
}

// statusFor is the non-terminal status of a team of size members.
func statusFor(size, minSize int) models.TeamStatus {
	if size >= minSize {
		return models.TeamStatusComplete
	}
	return models.TeamStatusForming
}

func (s *Service) Create(ctx context.Context, leaderID, eventID uint, name string) (*TeamView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.ErrInvalidInput.WithMessage("Team name is required")
	}

	var team models.Team
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := events.Load(tx, eventID)
		if err != nil {
			return err
		}
		if !event.AllowsTeams() {
			return apperr.ErrTeamsNotSupported
		}
		if err := checkFree(tx, eventID, leaderID); err != nil {
			return err
		}

		code, err := s.ids.WithDB(tx).TeamCode(ctx)
		if err != nil {
			return err
		}
		team = models.Team{
			TeamCode: code,
			TeamName: name,
			EventID:  eventID,
			LeaderID: leaderID,
			Size:     1,
			Status:   statusFor(1, event.MinTeamSize),
		}
		if err := tx.Create(&team).Error; err != nil {
			return fmt.Errorf("create team: %w", err)
		}
		return addMember(tx, team, leaderID, models.TeamRoleLeader)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("team created",
		zap.String("team_code", team.TeamCode),
		zap.Uint("event_id", eventID),
		zap.Uint("leader_id", leaderID))
	return s.Get(ctx, team.ID)
}

// JoinRequest names the team by code or by id, always within one event.
type JoinRequest struct {
	EventID  uint
	TeamCode string
	TeamID   uint
}

func (s *Service) Join(ctx context.Context, userID uint, req JoinRequest) (*TeamView, error) {
	code := strings.ToUpper(strings.TrimSpace(req.TeamCode))
	if code == "" && req.TeamID == 0 {
		return nil, apperr.ErrInvalidInput.WithMessage("Either team_code or team_id is required")
	}

	var teamID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var team models.Team
		q := tx.Where("event_id = ?", req.EventID)
		if req.TeamID != 0 {
			q = q.Where("id = ?", req.TeamID)
		} else {
			q = q.Where("team_code = ?", code)
		}
		if err := q.Take(&team).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrTeamNotFound
			}
			return err
		}
		teamID = team.ID

		event, err := events.Load(tx, team.EventID)
		if err != nil {
			return err
		}
		if !event.AllowsTeams() {
			return apperr.ErrTeamsNotSupported
		}
		if team.Status == models.TeamStatusRegistered {
			return apperr.ErrTeamAlreadyRegistered
		}
		if team.LeaderID == userID {
			return apperr.ErrCannotJoinOwnTeam
		}
		if err := checkFree(tx, team.EventID, userID); err != nil {
			return err
		}
		if team.Size >= event.MaxTeamSize {
			return apperr.ErrTeamFull.WithMessage("Team is full (maximum %d members)", event.MaxTeamSize)
		}

		res := tx.Model(&models.Team{}).
			Where("id = ? AND size < ? AND status <> ?", team.ID, event.MaxTeamSize, models.TeamStatusRegistered).
			UpdateColumn("size", gorm.Expr("size + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrTeamFull.WithMessage("Team is full (maximum %d members)", event.MaxTeamSize)
		}

		if err := addMember(tx, team, userID, models.TeamRoleMember); err != nil {
			return err
		}

		size, err := memberCount(tx, team.ID)
		if err != nil {
			return err
		}
		if size > event.MaxTeamSize {
			return apperr.ErrTeamFull.WithMessage("Team is full (maximum %d members)", event.MaxTeamSize)
		}
		return settle(tx, team.ID, size, event.MinTeamSize)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("team joined", zap.Uint("team_id", teamID), zap.Uint("user_id", userID))
	return s.Get(ctx, teamID)
}

type RegisterResult struct {
	Team          *TeamView             `json:"team"`
	Registrations []models.Registration `json:"registrations"`
}

// Register enrolls the leader and every member in one transaction and seals
// the team.
func (s *Service) Register(ctx context.Context, leaderID, teamID uint) (*RegisterResult, error) {
	var (
		team    models.Team
		event   *models.Event
		members []Member
		regs    []models.Registration
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		team, err = loadTeam(tx, teamID)
		if err != nil {
			return err
		}
		if team.LeaderID != leaderID {
			return apperr.ErrNotTeamLeader
		}
		if team.Status == models.TeamStatusRegistered {
			return apperr.ErrAlreadyRegistered.WithMessage("Team is already registered")
		}

		event, err = events.Load(tx, team.EventID)
		if err != nil {
			return err
		}
		members, err = roster(tx, team.ID)
		if err != nil {
			return err
		}
		if len(members) < event.MinTeamSize {
			return apperr.ErrTeamTooSmall.WithMessage("Team must have at least %d members to register", event.MinTeamSize)
		}
		if len(members) > event.MaxTeamSize {
			return apperr.ErrTeamTooLarge.WithMessage("Team size exceeds the maximum allowed size of %d", event.MaxTeamSize)
		}

		res := tx.Model(&models.Team{}).
			Where("id = ? AND status <> ?", team.ID, models.TeamStatusRegistered).
			Update("status", models.TeamStatusRegistered)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrAlreadyRegistered.WithMessage("Team is already registered")
		}

		userIDs := make([]uint, len(members))
		for i, m := range members {
			userIDs[i] = m.ID
		}
		regs, err = s.regs.RegisterMembers(ctx, tx, event.ID, team.ID, userIDs)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("team registered",
		zap.String("team_code", team.TeamCode),
		zap.Uint("event_id", event.ID),
		zap.Int("members", len(regs)))

	if s.notify != nil {
		users := make([]models.User, len(members))
		for i, m := range members {
			users[i] = models.User{Name: m.Name, Email: m.Email}
			users[i].ID = m.ID
		}
		team.Status = models.TeamStatusRegistered
		notifyEvent := *event
		notifier.Async(s.log, "team_registered", func() error {
			return s.notify.NotifyTeamRegistered(team, notifyEvent, users)
		})
	}

	view, err := s.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{Team: view, Registrations: regs}, nil
}

// Leave removes a member and returns the team as it stands afterwards.
func (s *Service) Leave(ctx context.Context, userID, teamID uint) (*TeamView, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		team, err := loadTeam(tx, teamID)
		if err != nil {
			return err
		}
		if team.Status == models.TeamStatusRegistered {
			return apperr.ErrCannotLeaveRegisteredTeam
		}
		if team.LeaderID == userID {
			return apperr.ErrLeaderCannotLeave
		}

		res := tx.Where("team_id = ? AND user_id = ?", team.ID, userID).Delete(&models.TeamMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNotAMember
		}

		event, err := events.Load(tx, team.EventID)
		if err != nil {
			return err
		}
		size, err := memberCount(tx, team.ID)
		if err != nil {
			return err
		}
		if err := settle(tx, team.ID, size, event.MinTeamSize); err != nil {
			return err
		}
		s.log.Info("team left", zap.Uint("team_id", teamID), zap.Uint("user_id", userID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, teamID)
}

// Delete removes the team and its memberships for good.
func (s *Service) Delete(ctx context.Context, userID, teamID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		team, err := loadTeam(tx, teamID)
		if err != nil {
			return err
		}
		if team.LeaderID != userID {
			return apperr.ErrNotTeamLeader
		}
		if team.Status == models.TeamStatusRegistered {
			return apperr.ErrCannotDeleteRegisteredTeam
		}
		if err := tx.Where("team_id = ?", team.ID).Delete(&models.TeamMember{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(&team).Error; err != nil {
			return err
		}
		s.log.Info("team deleted", zap.String("team_code", team.TeamCode))
		return nil
	})
}

func (s *Service) Get(ctx context.Context, teamID uint) (*TeamView, error) {
	db := s.db.WithContext(ctx)
	team, err := loadTeam(db, teamID)
	if err != nil {
		return nil, err
	}
	views, err := populate(db, []models.Team{team})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// MyTeam returns the caller's team for an event.
func (s *Service) MyTeam(ctx context.Context, userID, eventID uint) (*TeamView, error) {
	db := s.db.WithContext(ctx)
	var team models.Team
	err := db.Joins("JOIN team_members ON team_members.team_id = teams.id").
		Where("team_members.event_id = ? AND team_members.user_id = ?", eventID, userID).
		Take(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrTeamNotFound.WithMessage("You are not part of any team for this event")
	}
	if err != nil {
		return nil, err
	}
	views, err := populate(db, []models.Team{team})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

type AvailableTeam struct {
	TeamView
	CurrentSize    int `json:"current_size"`
	MaxSize        int `json:"max_size"`
	SlotsAvailable int `json:"slots_available"`
}

// Available lists unregistered teams of the event that still have room.
func (s *Service) Available(ctx context.Context, eventID uint) ([]AvailableTeam, error) {
	db := s.db.WithContext(ctx)
	event, err := events.Load(db, eventID)
	if err != nil {
		return nil, err
	}

	var list []models.Team
	err = db.Where("event_id = ? AND status <> ? AND size < ?", eventID, models.TeamStatusRegistered, event.MaxTeamSize).
		Order("created_at, id").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	views, err := populate(db, list)
	if err != nil {
		return nil, err
	}

	out := make([]AvailableTeam, len(views))
	for i, v := range views {
		out[i] = AvailableTeam{
			TeamView:       v,
			CurrentSize:    v.Size,
			MaxSize:        event.MaxTeamSize,
			SlotsAvailable: event.MaxTeamSize - v.Size,
		}
	}
	return out, nil
}

// checkFree rejects users already in a team or individually registered for
// the event.
func checkFree(tx *gorm.DB, eventID, userID uint) error {
	var n int64
	if err := tx.Model(&models.TeamMember{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperr.ErrAlreadyInTeam
	}
	if err := tx.Model(&models.Registration{}).
		Where("event_id = ? AND user_id = ? AND team_id IS NULL", eventID, userID).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperr.ErrAlreadyRegisteredIndividually
	}
	return nil
}

func addMember(tx *gorm.DB, team models.Team, userID uint, role models.TeamRole) error {
	member := models.TeamMember{
		TeamID:   team.ID,
		EventID:  team.EventID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now(),
	}
	err := tx.Create(&member).Error
	if database.IsUniqueViolation(err) {
		return apperr.ErrAlreadyInTeam
	}
	return err
}

// settle stores the recounted size and re-derives the status.
func settle(tx *gorm.DB, teamID uint, size, minSize int) error {
	return tx.Model(&models.Team{}).
		Where("id = ? AND status <> ?", teamID, models.TeamStatusRegistered).
		Updates(map[string]any{"size": size, "status": statusFor(size, minSize)}).Error
}

func memberCount(tx *gorm.DB, teamID uint) (int, error) {
	var n int64
	err := tx.Model(&models.TeamMember{}).Where("team_id = ?", teamID).Count(&n).Error
	return int(n), err
}

func loadTeam(db *gorm.DB, teamID uint) (models.Team, error) {
	var team models.Team
	err := db.First(&team, teamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return team, apperr.ErrTeamNotFound
	}
	if err != nil {
		return team, fmt.Errorf("load team %d: %w", teamID, err)
	}
	return team, nil
}
