package models

// RoleType identifies the kind of person a profile represents
type RoleType string

const (
	RoleStudent           RoleType = "student"
	RoleTeacher           RoleType = "teacher"
	RoleGuardian          RoleType = "guardian"
	RoleAdmin             RoleType = "admin"
	RoleHeadteacher       RoleType = "headteacher"
	RoleDeputyHeadteacher RoleType = "deputy_headteacher"
)

// Valid reports whether the role is one of the known role types
func (r RoleType) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleGuardian, RoleAdmin, RoleHeadteacher, RoleDeputyHeadteacher:
		return true
	}
	return false
}
