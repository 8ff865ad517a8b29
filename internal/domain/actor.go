package domain

// Actor identifies who is performing an operation. Services authorize
// against it rather than against HTTP sessions.
type Actor struct {
	UserID    string `json:"user_id"`
	Role      Role   `json:"role"`
	CompanyID string `json:"company_id,omitempty"`
}

// IsAdmin is true for ADMIN and SUPER_ADMIN.
func (a Actor) IsAdmin() bool { return a.Role.AtLeastAdmin() }

// IsStaff is true for admins and gestors.
func (a Actor) IsStaff() bool { return a.Role.IsStaff() }

// IsGestor is true for GESTOR only.
func (a Actor) IsGestor() bool { return a.Role == RoleGestor }

// ActsForCompany is true when a is a COMPANY user of companyID.
func (a Actor) ActsForCompany(companyID string) bool {
	return a.Role == RoleCompany && a.CompanyID != "" && a.CompanyID == companyID
}

// System is the actor used by background jobs.
var System = Actor{UserID: "system", Role: RoleSuperAdmin}
