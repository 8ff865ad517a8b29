package domain

import "time"

// Profile is the externally visible projection of a User. Nil fields are
// hidden from the viewer and omitted from JSON.
type Profile struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	AvatarURL      string           `json:"avatar_url"`
	Role           Role             `json:"role"`
	Email          *string          `json:"email,omitempty"`
	Phone          *string          `json:"phone,omitempty"`
	Department     *string          `json:"department,omitempty"`
	Administration *string          `json:"administration,omitempty"`
	City           *string          `json:"city,omitempty"`
	Bio            *string          `json:"bio,omitempty"`
	BirthDate      *time.Time       `json:"birth_date,omitempty"`
	Privacy        *PrivacySettings `json:"privacy,omitempty"`
}

// ProfileFor projects u as seen by viewer. The owner and admins see every
// field; everyone else sees what the privacy flags allow.
func (u *User) ProfileFor(viewer Actor) Profile {
	p := Profile{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL, Role: u.Role}
	full := viewer.UserID == u.ID || viewer.IsAdmin()
	priv := u.Privacy

	if full || priv.ShowEmail {
		p.Email = strPtr(u.Email)
	}
	if full || priv.ShowPhone {
		p.Phone = strPtr(u.Phone)
	}
	if full || priv.ShowDepartment {
		p.Department = strPtr(u.Department)
		p.Administration = strPtr(u.Administration)
	}
	if full || priv.ShowCity {
		p.City = strPtr(u.City)
	}
	if full || priv.ShowBio {
		p.Bio = strPtr(u.Bio)
	}
	if full || priv.ShowBirthDate {
		p.BirthDate = u.BirthDate
	}
	if full {
		p.Privacy = &priv
	}
	return p
}

func strPtr(s string) *string { return &s }
