// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// EntityID represents a unique entity identifier (UUID format).
// Lessons, plans, milestones, goals and status records all use it.
type EntityID string

// IsValid checks if the entity ID is a valid UUID.
func (e EntityID) IsValid() bool {
	return uuidRegex.MatchString(string(e))
}

// String returns the string representation.
func (e EntityID) String() string {
	return string(e)
}

// IsEmpty checks if the ID is empty.
func (e EntityID) IsEmpty() bool {
	return e == ""
}

// NewEntityID creates a new EntityID with validation.
func NewEntityID(id string) (EntityID, error) {
	eid := EntityID(strings.ToLower(strings.TrimSpace(id)))
	if !eid.IsValid() {
		return "", NewDomainError("shared", "NewEntityID", ErrInvalidID, "invalid entity ID format")
	}
	return eid, nil
}

// StudentID represents a unique student identifier (UUID format).
// Supplied by the external identity layer; the core never creates students.
type StudentID string

// IsValid checks if the student ID is a valid UUID.
func (s StudentID) IsValid() bool {
	return uuidRegex.MatchString(string(s))
}

// String returns the string representation.
func (s StudentID) String() string {
	return string(s)
}

// IsEmpty checks if the ID is empty.
func (s StudentID) IsEmpty() bool {
	return s == ""
}

// TutorID represents a unique tutor identifier (UUID format).
// Supplied by the external identity layer, same as StudentID.
type TutorID string

// IsValid checks if the tutor ID is a valid UUID.
func (t TutorID) IsValid() bool {
	return uuidRegex.MatchString(string(t))
}

// String returns the string representation.
func (t TutorID) String() string {
	return string(t)
}

// IsEmpty checks if the ID is empty.
func (t TutorID) IsEmpty() bool {
	return t == ""
}

// ═══════════════════════════════════════════════════════════════════════════
// Subject Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Subject represents the subject a lesson covers (e.g., "math", "english").
type Subject string

// IsValid checks if the subject code is well-formed.
func (s Subject) IsValid() bool {
	v := string(s)
	return len(v) >= 2 && len(v) <= 50 && !strings.ContainsAny(v, " \t\n\r")
}

// String returns the string representation.
func (s Subject) String() string {
	return string(s)
}

// Normalize returns the lowercase form used for storage and comparison.
func (s Subject) Normalize() Subject {
	return Subject(strings.ToLower(string(s)))
}

// NewSubject creates a new Subject with validation.
func NewSubject(value string) (Subject, error) {
	subj := Subject(strings.TrimSpace(value))
	if !subj.IsValid() {
		return "", NewDomainError("shared", "NewSubject", ErrInvalidInput, "invalid subject code")
	}
	return subj.Normalize(), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Actor Value Object
// Identity and role come from the external auth layer; the core only
// records who initiated a transition.
// ═══════════════════════════════════════════════════════════════════════════

// ActorRole labels the role of the authenticated caller.
type ActorRole string

const (
	// RoleStudent - the caller is a student.
	RoleStudent ActorRole = "student"
	// RoleTutor - the caller is a tutor.
	RoleTutor ActorRole = "tutor"
	// RoleSystem - the caller is an internal job (reconciler, migrations).
	RoleSystem ActorRole = "system"
)

// IsValid checks if the role is known.
func (r ActorRole) IsValid() bool {
	switch r {
	case RoleStudent, RoleTutor, RoleSystem:
		return true
	default:
		return false
	}
}

// Actor is the verified caller identity supplied by the external auth layer.
type Actor struct {
	ID   string
	Role ActorRole
}

// IsValid checks that the actor carries an ID and a known role.
func (a Actor) IsValid() bool {
	return a.ID != "" && a.Role.IsValid()
}

// SystemActor returns the actor used by internal background jobs.
func SystemActor() Actor {
	return Actor{ID: "system", Role: RoleSystem}
}
