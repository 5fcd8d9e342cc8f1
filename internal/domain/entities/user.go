package entities

// Role is the role assigned to a staff account
type Role string

const (
	RoleDoctor       Role = "Doctor"
	RoleReceptionist Role = "Receptionist"
	RoleAssistant    Role = "Assistant"
	RoleAdmin        Role = "Admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleDoctor, RoleReceptionist, RoleAssistant, RoleAdmin:
		return true
	}
	return false
}

// User represents a staff account
type User struct {
	ID           int64  `db:"user_id"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
	Role         Role   `db:"role"`
}

// Session is the result of a successful credential check. The token is an
// opaque identifier for the login, not a persisted value.
type Session struct {
	Token    string
	UserID   int64
	Username string
	Role     Role
}
