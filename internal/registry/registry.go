// Package registry defines the collaborator interfaces the attendance core
// consumes. Room and person management (CRUD, uniqueness, provisioning) is
// owned elsewhere; the core only needs these read paths.
package registry

import (
	"context"

	id "presence/pkg/domain"
)

// Room is the slice of room state the core needs: admission capacity and
// whether the room currently accepts check-ins.
type Room struct {
	ID       id.RoomID `json:"id"`
	Name     string    `json:"name"`
	Capacity int       `json:"capacity"`
	Active   bool      `json:"active"`
}

// Person is the resolved identity behind a presented credential.
type Person struct {
	ID             id.PersonID `json:"id"`
	Name           string      `json:"name"`
	EnrollmentCode string      `json:"enrollment_code"`
	NationalID     string      `json:"national_id"`
	ScannedCode    string      `json:"scanned_code"`
	Active         bool        `json:"active"`
}

// RoomRegistry exposes room lookups. Implementations return
// sentinel.ErrNotFound for unknown rooms.
type RoomRegistry interface {
	Room(ctx context.Context, roomID id.RoomID) (Room, error)
}

// PersonRegistry exposes credential lookups. Implementations return
// sentinel.ErrNotFound when no active person matches; they never interpret
// credential syntax, which is the resolver's job.
type PersonRegistry interface {
	FindByEnrollment(ctx context.Context, code string) (Person, error)
	FindByNationalID(ctx context.Context, code string) (Person, error)
	FindByScannedCode(ctx context.Context, token string) (Person, error)
}

// BiometricMatcher validates biometric tokens. Matching runs in an external
// system; the core only forwards the token and consumes the resolved person.
type BiometricMatcher interface {
	Match(ctx context.Context, token string) (id.PersonID, error)
}
