package domain

import "time"

// Role is a platform-wide permission level.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleGestor     Role = "GESTOR"
	RoleCompany    Role = "COMPANY"
	RoleEmployee   Role = "EMPLOYEE"
)

// Roles lists every valid role.
var Roles = []Role{RoleSuperAdmin, RoleAdmin, RoleGestor, RoleCompany, RoleEmployee}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, v := range Roles {
		if r == v {
			return true
		}
	}
	return false
}

// AtLeastAdmin is true for ADMIN and SUPER_ADMIN.
func (r Role) AtLeastAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// IsStaff is true for platform staff: admins and gestors.
func (r Role) IsStaff() bool {
	return r.AtLeastAdmin() || r == RoleGestor
}

// PrivacySettings controls which profile fields other users can see.
type PrivacySettings struct {
	ShowEmail      bool `json:"show_email"`
	ShowPhone      bool `json:"show_phone"`
	ShowDepartment bool `json:"show_department"`
	ShowCity       bool `json:"show_city"`
	ShowBio        bool `json:"show_bio"`
	ShowBirthDate  bool `json:"show_birth_date"`
}

// DefaultPrivacy is applied to new accounts.
func DefaultPrivacy() PrivacySettings {
	return PrivacySettings{ShowDepartment: true, ShowBio: true}
}

// User is an account on the platform. Users are never hard-deleted.
type User struct {
	ID             string          `json:"id"`
	Email          string          `json:"email"`
	PasswordHash   string          `json:"-"`
	Name           string          `json:"name"`
	Role           Role            `json:"role"`
	CompanyID      *string         `json:"company_id,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	Department     string          `json:"department,omitempty"`
	Administration string          `json:"administration,omitempty"`
	City           string          `json:"city,omitempty"`
	Bio            string          `json:"bio,omitempty"`
	AvatarURL      string          `json:"avatar_url,omitempty"`
	BirthDate      *time.Time      `json:"birth_date,omitempty"`
	Privacy        PrivacySettings `json:"privacy"`
	Active         bool            `json:"active"`
	LastLoginAt    *time.Time      `json:"last_login_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Actor returns the authorization identity of u.
func (u *User) Actor() Actor {
	a := Actor{UserID: u.ID, Role: u.Role}
	if u.CompanyID != nil {
		a.CompanyID = *u.CompanyID
	}
	return a
}
