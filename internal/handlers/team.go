package handlers

import (
	"context"

	"github.com/gdg-garage/eventra-api/internal/apperr"
	"github.com/gdg-garage/eventra-api/internal/auth"
	"github.com/gdg-garage/eventra-api/internal/models"
	"github.com/gdg-garage/eventra-api/internal/teams"
)

type TeamHandler struct {
	teams       *teams.Service
	authHandler *auth.AuthHandler
}

func NewTeamHandler(svc *teams.Service, authHandler *auth.AuthHandler) *TeamHandler {
	return &TeamHandler{teams: svc, authHandler: authHandler}
}

type TeamOutput struct {
	Body struct {
		Message string          `json:"message,omitempty"`
		Team    *teams.TeamView `json:"team"`
	}
}

func teamOutput(message string, view *teams.TeamView) *TeamOutput {
	out := &TeamOutput{}
	out.Body.Message = message
	out.Body.Team = view
	return out
}

type CreateTeamInput struct {
	auth.AuthInput
	Body struct {
		EventID  uint   `json:"event_id" required:"true" minimum:"1"`
		TeamName string `json:"team_name" required:"true" minLength:"1" maxLength:"100"`
	}
}

func (h *TeamHandler) HandleCreate(ctx context.Context, input *CreateTeamInput) (*TeamOutput, error) {
	user, err := h.authHandler.Authorize(ctx, input.AuthInput, models.RoleStudent)
	if err != nil {
		return nil, err
	}
	view, err := h.teams.Create(ctx, user.ID, input.Body.EventID, input.Body.TeamName)
	if err != nil {
		return nil, apperr.From(err)
	}
	return teamOutput("Team created successfully", view), nil
}

type JoinTeamInput struct {
	auth.AuthInput
	Body struct {
		EventID  uint   `json:"event_id" required:"true" minimum:"1"`
		TeamCode string `json:"team_code,omitempty" doc:"Case-insensitive invite code"`
		TeamID   uint   `json:"team_id,omitempty"`
	}
}

func (h *TeamHandler) HandleJoin(ctx context.Context, input *JoinTeamInput) (*TeamOutput, error) {
	user, err := h.authHandler.Authorize(ctx, input.AuthInput, models.RoleStudent)
	if err != nil {
		return nil, err
	}
	view, err := h.teams.Join(ctx, user.ID, teams.JoinRequest{
		EventID:  input.Body.EventID,
		TeamCode: input.Body.TeamCode,
		TeamID:   input.Body.TeamID,
	})
	if err != nil {
		return nil, apperr.From(err)
	}
	return teamOutput("Successfully joined team", view), nil
}

type TeamEventInput struct {
	auth.AuthInput
	EventID uint `path:"eventId"`
}

func (h *TeamHandler) HandleMyTeam(ctx context.Context, input *TeamEventInput) (*TeamOutput, error) {
	user, err := h.authHandler.Authorize(ctx, input.AuthInput, models.RoleStudent)
	if err != nil {
		return nil, err
	}
	view, err := h.teams.MyTeam(ctx, user.ID, input.EventID)
	if err != nil {
		return nil, apperr.From(err)
	}
	return teamOutput("", view), nil
}

type AvailableTeamsOutput struct {
	Body []teams.AvailableTeam
}

func (h *TeamHandler) HandleAvailable(ctx context.Context, input *TeamEventInput) (*AvailableTeamsOutput, error) {
	if _, err := h.authHandler.Authorize(ctx, input.AuthInput, models.RoleStudent); err != nil {
		return nil, err
	}
	list, err := h.teams.Available(ctx, input.EventID)
	if err != nil {
		return nil, apperr.From(err)
	}
	return &AvailableTeamsOutput{Body: list}, nil
}

type TeamIDInput struct {
	auth.AuthInput
	TeamID uint `path:"teamId"`
}

type RegisterTeamOutput struct {
	Body struct {
		Message            string          `json:"message"`
		Team               *teams.TeamView `json:"team"`
		RegistrationsCount int             `json:"registrations_count"`
	}
}

func (h *TeamHandler) HandleRegister(ctx context.Context, input *TeamIDInput) (*RegisterTeamOutput, error) {
	user, err := h.authHandler.Authorize(ctx, input.AuthInput, models.RoleStudent)
	if err != nil {
		return nil, err
	}
	res, err := h.teams.Register(ctx, user.ID, input.TeamID)
	if err != nil {
		return nil, apperr.From(err)
	}
	out := &RegisterTeamOutput{}
	out.Body.Message = "Team registered successfully"
	out.Body.Team = res.Team
	out.Body.RegistrationsCount = len(res.Registrations)
	return out, nil
}

func (h *TeamHandler) HandleLeave(ctx context.Context, input *TeamIDInput) (*TeamOutput, error) {
	user, err := h.authHandler.Authorize(ctx, input.AuthInput, models.RoleStudent)
	if err != nil {
		return nil, err
	}
	view, err := h.teams.Leave(ctx, user.ID, input.TeamID)
	if err != nil {
		return nil, apperr.From(err)
	}
	return teamOutput("Successfully left the team", view), nil
}

func (h *TeamHandler) HandleDelete(ctx context.Context, input *TeamIDInput) (*MessageOutput, error) {
	user, err := h.authHandler.Authorize(ctx, input.AuthInput, models.RoleStudent)
	if err != nil {
		return nil, err
	}
	if err := h.teams.Delete(ctx, user.ID, input.TeamID); err != nil {
		return nil, apperr.From(err)
	}
	return message("Team deleted successfully"), nil
}
