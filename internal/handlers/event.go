package handlers

import (
	"context"
	"time"

	"github.com/gdg-garage/eventra-api/internal/apperr"
	"github.com/gdg-garage/eventra-api/internal/auth"
	"github.com/gdg-garage/eventra-api/internal/events"
	"github.com/gdg-garage/eventra-api/internal/models"
)

type EventHandler struct {
	events      *events.Service
	authHandler *auth.AuthHandler
}

func NewEventHandler(svc *events.Service, authHandler *auth.AuthHandler) *EventHandler {
	return &EventHandler{events: svc, authHandler: authHandler}
}

type ListEventsInput struct {
	Query string `query:"q" doc:"Fuzzy match against event titles"`
}

type ListEventsOutput struct {
	Body []events.EventView
}

func (h *EventHandler) HandleList(ctx context.Context, input *ListEventsInput) (*ListEventsOutput, error) {
	list, err := h.events.List(ctx, input.Query)
	if err != nil {
		return nil, apperr.From(err)
	}
	return &ListEventsOutput{Body: list}, nil
}

type EventIDInput struct {
	ID uint `path:"id"`
}

type EventOutput struct {
	Body struct {
		Message string            `json:"message,omitempty"`
		Event   *events.EventView `json:"event"`
	}
}

func eventOutput(message string, view *events.EventView) *EventOutput {
	out := &EventOutput{}
	out.Body.Message = message
	out.Body.Event = view
	return out
}

func (h *EventHandler) HandleGet(ctx context.Context, input *EventIDInput) (*EventOutput, error) {
	view, err := h.events.Get(ctx, input.ID)
	if err != nil {
		return nil, apperr.From(err)
	}
	return eventOutput("", view), nil
}

// EventBody accepts the legacy team_size field; it sets both bounds when
// neither min_team_size nor max_team_size is sent.
type EventBody struct {
	Title          string    `json:"title" required:"true" minLength:"1"`
	Description    string    `json:"description" required:"true" minLength:"1"`
	About          string    `json:"about" required:"true" minLength:"1"`
	Date           time.Time `json:"date" required:"true"`
	Venue          string    `json:"venue" required:"true" minLength:"1"`
	TotalPrize     string    `json:"total_prize,omitempty"`
	MinTeamSize    int       `json:"min_team_size,omitempty" minimum:"1"`
	MaxTeamSize    int       `json:"max_team_size,omitempty" minimum:"1"`
	TeamSize       int       `json:"team_size,omitempty" minimum:"1" doc:"Deprecated: use min_team_size and max_team_size"`
	CoordinatorIDs []uint    `json:"coordinator_ids,omitempty"`
}

// teamBounds resolves the size bounds of a create request. Missing bounds
// default to 1, and a lone min also caps max.
func (b EventBody) teamBounds() (int, int) {
	minSize, maxSize := b.MinTeamSize, b.MaxTeamSize
	if minSize == 0 && maxSize == 0 && b.TeamSize > 0 {
		return b.TeamSize, b.TeamSize
	}
	if minSize == 0 {
		minSize = 1
	}
	if maxSize == 0 {
		maxSize = minSize
	}
	return minSize, maxSize
}

type CreateEventInput struct {
	auth.AuthInput
	Body EventBody
}

func (h *EventHandler) HandleCreate(ctx context.Context, input *CreateEventInput) (*EventOutput, error) {
	if _, err := h.authHandler.Authorize(ctx, input.AuthInput, models.RoleAdmin); err != nil {
		return nil, err
	}
	b := input.Body
	minSize, maxSize := b.teamBounds()
	view, err := h.events.Create(ctx, events.Input{
		Title:          b.Title,
		Description:    b.Description,
		About:          b.About,
		Date:           b.Date,
		Venue:          b.Venue,
		TotalPrize:     b.TotalPrize,
		MinTeamSize:    minSize,
		MaxTeamSize:    maxSize,
		CoordinatorIDs: b.CoordinatorIDs,
	})
	if err != nil {
		return nil, apperr.From(err)
	}
	return eventOutput("Event created successfully", view), nil
}

type UpdateEventInput struct {
	auth.AuthInput
	ID   uint `path:"id"`
	Body struct {
		Title          *string    `json:"title,omitempty"`
		Description    *string    `json:"description,omitempty"`
		About          *string    `json:"about,omitempty"`
		Date           *time.Time `json:"date,omitempty"`
		Venue          *string    `json:"venue,omitempty"`
		TotalPrize     *string    `json:"total_prize,omitempty"`
		MinTeamSize    *int       `json:"min_team_size,omitempty" minimum:"1"`
		MaxTeamSize    *int       `json:"max_team_size,omitempty" minimum:"1"`
		TeamSize       *int       `json:"team_size,omitempty" minimum:"1" doc:"Deprecated: use min_team_size and max_team_size"`
		CoordinatorIDs *[]uint    `json:"coordinator_ids,omitempty"`
	}
}

func (h *EventHandler) HandleUpdate(ctx context.Context, input *UpdateEventInput) (*EventOutput, error) {
	if _, err := h.authHandler.Authorize(ctx, input.AuthInput, models.RoleAdmin); err != nil {
		return nil, err
	}
	b := input.Body
	upd := events.Update{
		Title:          b.Title,
		Description:    b.Description,
		About:          b.About,
		Date:           b.Date,
		Venue:          b.Venue,
		TotalPrize:     b.TotalPrize,
		MinTeamSize:    b.MinTeamSize,
		MaxTeamSize:    b.MaxTeamSize,
		CoordinatorIDs: b.CoordinatorIDs,
	}
	if b.MinTeamSize == nil && b.MaxTeamSize == nil && b.TeamSize != nil {
		upd.MinTeamSize, upd.MaxTeamSize = b.TeamSize, b.TeamSize
	}
	view, err := h.events.Update(ctx, input.ID, upd)
	if err != nil {
		return nil, apperr.From(err)
	}
	return eventOutput("Event updated successfully", view), nil
}

type DeleteEventInput struct {
	auth.AuthInput
	ID uint `path:"id"`
}

type MessageOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

func message(text string) *MessageOutput {
	out := &MessageOutput{}
	out.Body.Message = text
	return out
}

func (h *EventHandler) HandleDelete(ctx context.Context, input *DeleteEventInput) (*MessageOutput, error) {
	if _, err := h.authHandler.Authorize(ctx, input.AuthInput, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := h.events.Delete(ctx, input.ID); err != nil {
		return nil, apperr.From(err)
	}
	return message("Event deleted successfully"), nil
}

type CoordinatorsInput struct {
	auth.AuthInput
	ID   uint `path:"id"`
	Body struct {
		CoordinatorIDs []uint `json:"coordinator_ids" required:"true"`
	}
}

func (h *EventHandler) HandleAssignCoordinators(ctx context.Context, input *CoordinatorsInput) (*EventOutput, error) {
	if _, err := h.authHandler.Authorize(ctx, input.AuthInput, models.RoleAdmin); err != nil {
		return nil, err
	}
	view, err := h.events.AssignCoordinators(ctx, input.ID, input.Body.CoordinatorIDs)
	if err != nil {
		return nil, apperr.From(err)
	}
	return eventOutput("Coordinators assigned successfully", view), nil
}

func (h *EventHandler) HandleReassignCoordinators(ctx context.Context, input *CoordinatorsInput) (*EventOutput, error) {
	if _, err := h.authHandler.Authorize(ctx, input.AuthInput, models.RoleAdmin); err != nil {
		return nil, err
	}
	view, err := h.events.ReplaceCoordinators(ctx, input.ID, input.Body.CoordinatorIDs)
	if err != nil {
		return nil, apperr.From(err)
	}
	return eventOutput("Coordinators updated successfully", view), nil
}

type RemoveCoordinatorInput struct {
	auth.AuthInput
	ID            uint `path:"id"`
	CoordinatorID uint `path:"coordinatorId"`
}

func (h *EventHandler) HandleRemoveCoordinator(ctx context.Context, input *RemoveCoordinatorInput) (*EventOutput, error) {
	if _, err := h.authHandler.Authorize(ctx, input.AuthInput, models.RoleAdmin); err != nil {
		return nil, err
	}
	view, err := h.events.RemoveCoordinator(ctx, input.ID, input.CoordinatorID)
	if err != nil {
		return nil, apperr.From(err)
	}
	return eventOutput("Coordinator removed successfully", view), nil
}
