// Package classroom holds the domain types shared by every live-classroom
// component: participant roles, the local identity and the error taxonomy.
package classroom

import "strings"

// Role is the display role a participant announces when joining.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ParseRole maps user input to a Role, defaulting to student.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "teacher", "host", "instructor":
		return RoleTeacher
	default:
		return RoleStudent
	}
}

func (r Role) IsHost() bool {
	return r == RoleTeacher
}

// Identity is the local participant. ID is assigned by the relay on connect
// and is stable for the life of that connection.
type Identity struct {
	ID   string
	Name string
	Role Role
}
