package domain

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

// Scope is the caller's access context. A nil *Scope means unrestricted.
type Scope struct {
	Role    Role
	HotelID string
}

func (s *Scope) IsAdmin() bool { return s == nil || s.Role == RoleAdmin }
