package handlers

import (
	"context"

	"github.com/gdg-garage/eventra-api/internal/apperr"
	"github.com/gdg-garage/eventra-api/internal/auth"
	"github.com/gdg-garage/eventra-api/internal/models"
	"github.com/gdg-garage/eventra-api/internal/registrations"
)

type RegistrationHandler struct {
	registrations *registrations.Service
	authHandler   *auth.AuthHandler
}

func NewRegistrationHandler(svc *registrations.Service, authHandler *auth.AuthHandler) *RegistrationHandler {
	return &RegistrationHandler{registrations: svc, authHandler: authHandler}
}

type RegistrationRequest struct {
	auth.AuthInput
	Body struct {
		EventID uint `json:"event_id" required:"true" minimum:"1" doc:"Event to enroll in"`
	}
}

type RegistrationResponse struct {
	Body struct {
		Message      string                    `json:"message"`
		Registration *registrations.Enrollment `json:"registration"`
	}
}

func (h *RegistrationHandler) HandleRegister(ctx context.Context, input *RegistrationRequest) (*RegistrationResponse, error) {
	user, err := h.authHandler.Authorize(ctx, input.AuthInput, models.RoleStudent)
	if err != nil {
		return nil, err
	}
	enrollment, err := h.registrations.RegisterIndividual(ctx, user.ID, input.Body.EventID)
	if err != nil {
		return nil, apperr.From(err)
	}
	res := &RegistrationResponse{}
	res.Body.Message = "Successfully enrolled in event"
	res.Body.Registration = enrollment
	return res, nil
}

type MyRegistrationsInput struct {
	auth.AuthInput
}

type MyRegistrationsOutput struct {
	Body []registrations.MyRegistration
}

func (h *RegistrationHandler) HandleMine(ctx context.Context, input *MyRegistrationsInput) (*MyRegistrationsOutput, error) {
	user, err := h.authHandler.Authorize(ctx, input.AuthInput, models.RoleStudent)
	if err != nil {
		return nil, err
	}
	list, err := h.registrations.ListMine(ctx, user.ID)
	if err != nil {
		return nil, apperr.From(err)
	}
	return &MyRegistrationsOutput{Body: list}, nil
}

type EventParticipantsInput struct {
	auth.AuthInput
	EventID uint `path:"eventId"`
}

type EventParticipantsOutput struct {
	Body *registrations.ParticipantList
}

func (h *RegistrationHandler) HandleEventParticipants(ctx context.Context, input *EventParticipantsInput) (*EventParticipantsOutput, error) {
	user, err := h.authHandler.Authorize(ctx, input.AuthInput, models.RoleCoordinator, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	list, err := h.registrations.ListEventParticipants(ctx, input.EventID, *user)
	if err != nil {
		return nil, apperr.From(err)
	}
	return &EventParticipantsOutput{Body: list}, nil
}

type AllRegistrationsInput struct {
	auth.AuthInput
	EventID uint   `query:"event_id" doc:"Only this event"`
	College string `query:"college" doc:"Case-insensitive college substring"`
}

type AllRegistrationsOutput struct {
	Body []registrations.AdminEntry
}

func (h *RegistrationHandler) HandleAll(ctx context.Context, input *AllRegistrationsInput) (*AllRegistrationsOutput, error) {
	if _, err := h.authHandler.Authorize(ctx, input.AuthInput, models.RoleAdmin); err != nil {
		return nil, err
	}
	filter := registrations.Filter{College: input.College}
	if input.EventID != 0 {
		filter.EventID = &input.EventID
	}
	list, err := h.registrations.ListAll(ctx, filter)
	if err != nil {
		return nil, apperr.From(err)
	}
	return &AllRegistrationsOutput{Body: list}, nil
}
