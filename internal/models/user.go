package models

// UserRole represents the portal a user signs in to.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleHead    UserRole = "HEAD"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// Valid reports whether the role is one of the known portals.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleHead, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// TeachesSubjects reports whether the role can own gradesheets.
func (r UserRole) TeachesSubjects() bool {
	return r == RoleTeacher || r == RoleHead
}
