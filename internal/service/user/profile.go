package user

import (
	"context"
	"time"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/validate"
)

// Profile returns the target's profile as the viewer may see it. Disabled
// accounts are only visible to admins.
func (s *Service) Profile(ctx context.Context, viewer domain.Actor, id string) (domain.Profile, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}
	if !u.Active && !viewer.IsAdmin() && viewer.UserID != id {
		return domain.Profile{}, ErrNotFound
	}
	return u.ProfileFor(viewer), nil
}

// ProfileInput holds self-editable profile fields.
type ProfileInput struct {
	Name           *string    `json:"name"`
	Phone          *string    `json:"phone"`
	Department     *string    `json:"department"`
	Administration *string    `json:"administration"`
	City           *string    `json:"city"`
	Bio            *string    `json:"bio"`
	AvatarURL      *string    `json:"avatar_url"`
	BirthDate      *time.Time `json:"birth_date"`
}

// UpdateProfile edits the actor's own profile.
func (s *Service) UpdateProfile(ctx context.Context, actor domain.Actor, in ProfileInput) (*domain.User, error) {
	v := validate.Errors{}
	if in.Name != nil {
		v.Length("name", *in.Name, 1, 120)
	}
	if in.Phone != nil {
		v.Phone("phone", *in.Phone)
	}
	if in.Bio != nil {
		v.Length("bio", *in.Bio, 0, 2000)
	}
	if in.BirthDate != nil && in.BirthDate.After(s.now()) {
		v.Add("birth_date", "must be in the past")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, actor.UserID, UpdateFields{
		Name:           in.Name,
		Phone:          in.Phone,
		Department:     in.Department,
		Administration: in.Administration,
		City:           in.City,
		Bio:            in.Bio,
		AvatarURL:      in.AvatarURL,
		BirthDate:      in.BirthDate,
	}); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, actor.UserID)
}

// UpdatePrivacy replaces the actor's privacy flags.
func (s *Service) UpdatePrivacy(ctx context.Context, actor domain.Actor, p domain.PrivacySettings) (domain.PrivacySettings, error) {
	if err := s.repo.UpdatePrivacy(ctx, actor.UserID, p); err != nil {
		return domain.PrivacySettings{}, err
	}
	return p, nil
}
