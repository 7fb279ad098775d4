// Package apperr defines the error kinds every service returns. An *Error is
// also a huma.StatusError, so handlers can hand it back unchanged.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindForbidden
	KindInvalidArgument
	KindUnauthenticated
	KindExhausted
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindForbidden:
		return "Forbidden"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindUnauthenticated:
		return "Unauthenticated"
	case KindExhausted:
		return "Exhausted"
	default:
		return "Internal"
	}
}

// Status maps a kind to its HTTP status. Business conflicts answer 400 like
// every other rule violation.
func (k Kind) Status() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidArgument:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    Kind   `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`

	RequiresTeam bool   `json:"requires_team,omitempty"`
	TeamStatus   string `json:"team_status,omitempty"`
	MinTeamSize  int    `json:"min_team_size,omitempty"`
	MaxTeamSize  int    `json:"max_team_size,omitempty"`

	Err error `json:"-"`
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// GetStatus implements huma.StatusError.
func (e *Error) GetStatus() int { return e.Kind.Status() }

// Is matches on Code, so errors.Is(err, ErrTeamFull) holds for any copy of
// the sentinel regardless of message or details.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy carrying a different human message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// Wrap returns a copy with err attached as the cause.
func (e *Error) Wrap(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

var (
	ErrEventNotFound        = New(KindNotFound, "EventNotFound", "Event not found")
	ErrTeamNotFound         = New(KindNotFound, "TeamNotFound", "Team not found or invalid team code")
	ErrRegistrationNotFound = New(KindNotFound, "RegistrationNotFound", "Registration not found")
	ErrUserNotFound         = New(KindNotFound, "UserNotFound", "User not found")
	ErrNotAMember           = New(KindNotFound, "NotAMember", "You are not a member of this team")
	ErrAPIKeyNotFound       = New(KindNotFound, "APIKeyNotFound", "API key not found")

	ErrTeamsNotSupported             = New(KindInvalidArgument, "TeamsNotSupported", "This event does not support team registration")
	ErrTeamTooSmall                  = New(KindInvalidArgument, "TeamTooSmall", "Team does not have enough members to register")
	ErrTeamTooLarge                  = New(KindInvalidArgument, "TeamTooLarge", "Team size exceeds the maximum allowed size")
	ErrTeamRequired                  = New(KindInvalidArgument, "TeamRequired", "This event requires team registration. Please create or join a team first.")
	ErrTeamNotRegistered             = New(KindInvalidArgument, "TeamNotRegistered", "Your team is not yet registered. The team leader needs to register the team.")
	ErrInvalidStatus                 = New(KindInvalidArgument, "InvalidStatus", "Invalid status. Must be Present, Absent, or NotMarked")
	ErrInvalidTeamSize               = New(KindInvalidArgument, "InvalidTeamSize", "Min team size cannot be greater than max team size")
	ErrInvalidCoordinator            = New(KindInvalidArgument, "InvalidCoordinator", "One or more selected users are not coordinators")
	ErrInvalidInput                  = New(KindInvalidArgument, "InvalidInput", "Invalid input")
	ErrAlreadyInTeam                 = New(KindConflict, "AlreadyInTeam", "You are already part of a team for this event")
	ErrAlreadyRegisteredIndividually = New(KindConflict, "AlreadyRegisteredIndividually", "You are already registered individually for this event")
	ErrTeamAlreadyRegistered         = New(KindConflict, "TeamAlreadyRegistered", "This team has already been registered for the event")
	ErrCannotJoinOwnTeam             = New(KindConflict, "CannotJoinOwnTeam", "You are already the leader of this team")
	ErrTeamFull                      = New(KindConflict, "TeamFull", "Team is full")
	ErrAlreadyRegistered             = New(KindConflict, "AlreadyRegistered", "Already registered for this event")
	ErrMemberAlreadyRegistered       = New(KindConflict, "MemberAlreadyRegistered", "One or more team members are already registered for this event")
	ErrCannotLeaveRegisteredTeam     = New(KindConflict, "CannotLeaveRegisteredTeam", "Cannot leave a registered team")
	ErrLeaderCannotLeave             = New(KindConflict, "LeaderCannotLeave", "Team leader cannot leave. Delete the team instead")
	ErrCannotDeleteRegisteredTeam    = New(KindConflict, "CannotDeleteRegisteredTeam", "Cannot delete a registered team")
	ErrEmailTaken                    = New(KindConflict, "EmailTaken", "An account with this email already exists")
	ErrRollNoTaken                   = New(KindConflict, "RollNoTaken", "An account with this roll number already exists")

	ErrNotTeamLeader    = New(KindForbidden, "NotTeamLeader", "Only the team leader can perform this action")
	ErrAccessDenied     = New(KindForbidden, "AccessDenied", "Access denied. You are not assigned to this event")
	ErrInsufficientRole = New(KindForbidden, "InsufficientRole", "Access denied. Insufficient permissions")

	ErrUnauthenticated    = New(KindUnauthenticated, "Unauthenticated", "Unauthorized")
	ErrInvalidCredentials = New(KindUnauthenticated, "InvalidCredentials", "Invalid email or password")

	ErrIDSpaceExhausted = New(KindExhausted, "IDSpaceExhausted", "ID space exhausted")
	ErrInternal         = New(KindInternal, "Internal", "Server error")
)

// TeamRequired carries the event bounds so clients can prompt for a team.
func TeamRequired(minSize, maxSize int) *Error {
	c := *ErrTeamRequired
	c.RequiresTeam = true
	c.MinTeamSize = minSize
	c.MaxTeamSize = maxSize
	return &c
}

func TeamNotRegistered(status string) *Error {
	c := *ErrTeamNotRegistered
	c.TeamStatus = status
	return &c
}

func Internal(err error) *Error {
	return ErrInternal.Wrap(err)
}

// From returns err as an *Error, wrapping anything unknown as Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
