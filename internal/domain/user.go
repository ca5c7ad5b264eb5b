package domain

// Role enumerates what a user may do in the tracker.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAgent Role = "AGENT"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// User is the acting identity for every engine operation.
type User struct {
	ID   int64
	Name string
	Role Role
}

// IsAdmin reports whether u may approve changes, reassign tickets and manage users.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// IsAgent reports whether u works tickets. Admins are not agents.
func (u User) IsAgent() bool { return u.Role == RoleAgent }
