package handlers

import (
	"context"

	"github.com/gdg-garage/eventra-api/internal/apperr"
	"github.com/gdg-garage/eventra-api/internal/attendance"
	"github.com/gdg-garage/eventra-api/internal/auth"
	"github.com/gdg-garage/eventra-api/internal/models"
)

type AttendanceHandler struct {
	attendance  *attendance.Service
	authHandler *auth.AuthHandler
}

func NewAttendanceHandler(svc *attendance.Service, authHandler *auth.AuthHandler) *AttendanceHandler {
	return &AttendanceHandler{attendance: svc, authHandler: authHandler}
}

type MarkAttendanceInput struct {
	auth.AuthInput
	Body struct {
		RegistrationID uint                    `json:"registration_id" required:"true" minimum:"1"`
		Status         models.AttendanceStatus `json:"status" required:"true" enum:"Present,Absent,NotMarked"`
	}
}

type MarkAttendanceOutput struct {
	Body struct {
		Message    string             `json:"message"`
		Attendance *models.Attendance `json:"attendance"`
	}
}

func (h *AttendanceHandler) HandleMark(ctx context.Context, input *MarkAttendanceInput) (*MarkAttendanceOutput, error) {
	user, err := h.authHandler.Authorize(ctx, input.AuthInput, models.RoleCoordinator)
	if err != nil {
		return nil, err
	}
	att, err := h.attendance.Mark(ctx, user.ID, input.Body.RegistrationID, input.Body.Status)
	if err != nil {
		return nil, apperr.From(err)
	}
	out := &MarkAttendanceOutput{}
	out.Body.Message = "Attendance marked successfully"
	out.Body.Attendance = att
	return out, nil
}

type EventAttendanceInput struct {
	auth.AuthInput
	EventID uint `path:"eventId"`
}

type EventAttendanceOutput struct {
	Body *attendance.Summary
}

func (h *AttendanceHandler) HandleEvent(ctx context.Context, input *EventAttendanceInput) (*EventAttendanceOutput, error) {
	user, err := h.authHandler.Authorize(ctx, input.AuthInput, models.RoleCoordinator, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	summary, err := h.attendance.EventSummary(ctx, input.EventID, *user)
	if err != nil {
		return nil, apperr.From(err)
	}
	return &EventAttendanceOutput{Body: summary}, nil
}
