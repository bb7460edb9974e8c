package domain

import (
	"github.com/google/uuid"

	dErrors "trellis/pkg/domain-errors"
)

// Typed identifiers. Each aggregate gets its own type so a ProjectID can
// never be passed where a TaskID is expected.
type (
	UserID       uuid.UUID
	ProjectID    uuid.UUID
	MembershipID uuid.UUID
	TaskID       uuid.UUID
	StatusID     uuid.UUID
	EventID      uuid.UUID
)

// parseUUID enforces the shared parsing rules: non-empty, well formed, not the nil UUID.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > 45 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return u, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

func ParseProjectID(s string) (ProjectID, error) {
	u, err := parseUUID(s, "project id")
	return ProjectID(u), err
}

func ParseMembershipID(s string) (MembershipID, error) {
	u, err := parseUUID(s, "membership id")
	return MembershipID(u), err
}

func ParseTaskID(s string) (TaskID, error) {
	u, err := parseUUID(s, "task id")
	return TaskID(u), err
}

func ParseStatusID(s string) (StatusID, error) {
	u, err := parseUUID(s, "status id")
	return StatusID(u), err
}

func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s, "event id")
	return EventID(u), err
}

func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id ProjectID) String() string    { return uuid.UUID(id).String() }
func (id MembershipID) String() string { return uuid.UUID(id).String() }
func (id TaskID) String() string       { return uuid.UUID(id).String() }
func (id StatusID) String() string     { return uuid.UUID(id).String() }
func (id EventID) String() string      { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ProjectID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id MembershipID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TaskID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id StatusID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed IDs render as canonical UUID strings in JSON.
func (id UserID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id ProjectID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id MembershipID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id TaskID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id StatusID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id EventID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }

// UnmarshalText accepts any well-formed UUID, including the nil UUID.
func (id *UserID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ProjectID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *MembershipID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *TaskID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *StatusID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EventID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
