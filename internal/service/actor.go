package service

// Role is the caller's role as asserted by the auth provider.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleStaff    Role = "STAFF"
	RoleAdmin    Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleStaff || r == RoleAdmin
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   Role
	Email  string
}

// IsStaff is true for staff and admins, who may read and act on any user's records.
func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff || a.Role == RoleAdmin
}

// CanSee reports whether the actor may read a record owned by ownerID.
func (a Actor) CanSee(ownerID string) bool {
	return a.IsStaff() || (a.UserID != "" && a.UserID == ownerID)
}
