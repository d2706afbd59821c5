package domain

import "time"

// ============================================================
// User: account + profile (tables users / user_profile)
// ============================================================

// User is an authenticated account with its profile.
type User struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	Name               string    `json:"name"`
	Address            string    `json:"address"`
	City               string    `json:"city"`
	District           string    `json:"district"`
	Notifications      bool      `json:"notifications"`
	EmailNotifications bool      `json:"emailNotifications"`
	CreatedAt          time.Time `json:"createdAt,omitempty"`
}

// UserCredential is the stored login secret for an account.
type UserCredential struct {
	UserID       string
	Email        string
	PasswordHash string
}

// RegisterRequest is the body for POST /api/auth/register.
type RegisterRequest struct {
	Email              string `json:"email" validate:"required,email,max=255"`
	Password           string `json:"password" validate:"required,min=6,max=128"`
	Name               string `json:"name" validate:"required,min=1,max=100"`
	Address            string `json:"address" validate:"max=255"`
	City               string `json:"city" validate:"max=100"`
	District           string `json:"district" validate:"max=100"`
	Notifications      bool   `json:"notifications"`
	EmailNotifications bool   `json:"emailNotifications"`
}

// LoginRequest is the body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
	User        *User  `json:"user"`
}

// UpdateUserRequest is the body for PATCH /api/users/me. Only non-nil fields
// are written.
type UpdateUserRequest struct {
	Name               *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Address            *string `json:"address,omitempty" validate:"omitempty,max=255"`
	City               *string `json:"city,omitempty" validate:"omitempty,max=100"`
	District           *string `json:"district,omitempty" validate:"omitempty,max=100"`
	Notifications      *bool   `json:"notifications,omitempty"`
	EmailNotifications *bool   `json:"emailNotifications,omitempty"`
}

// ProfileColumns returns the user_profile columns touched by the update,
// keyed by their snake_case names.
func (r *UpdateUserRequest) ProfileColumns() map[string]any {
	cols := map[string]any{}
	if r.Address != nil {
		cols["address"] = *r.Address
	}
	if r.City != nil {
		cols["city"] = *r.City
	}
	if r.District != nil {
		cols["district"] = *r.District
	}
	if r.Notifications != nil {
		cols["notifications"] = *r.Notifications
	}
	if r.EmailNotifications != nil {
		cols["email_notifications"] = *r.EmailNotifications
	}
	return cols
}

// UserColumns returns the users columns touched by the update.
func (r *UpdateUserRequest) UserColumns() map[string]any {
	cols := map[string]any{}
	if r.Name != nil {
		cols["name"] = *r.Name
	}
	return cols
}

// Empty reports whether the update carries no fields.
func (r *UpdateUserRequest) Empty() bool {
	return len(r.ProfileColumns()) == 0 && len(r.UserColumns()) == 0
}
