// Package model defines domain entities used by services, repositories and the backend adapter.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// User is the identity reported by the backend auth service.
type User struct {
	ID          uuid.UUID
	Email       string
	DisplayName string // user metadata "display_name", may be empty
}

// Label returns the name shown for the user: display name, else email.
func (u User) Label() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

// Session is an authenticated backend session.
type Session struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time // access token expiry
	User         User
}

// Expired reports whether the access token is expired at now, allowing margin.
func (s *Session) Expired(now time.Time, margin time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(margin).Before(s.ExpiresAt)
}

// AuthResult is the outcome of a sign-up; Session is nil when confirmation is required.
type AuthResult struct {
	User    User
	Session *Session
}

// UserUpdate is a patch for the signed-in user's credentials or metadata.
type UserUpdate struct {
	Password string
	Data     map[string]any
}

// Profile is the application-level user record.
type Profile struct {
	ID          uuid.UUID
	DisplayName string
	Role        Role
	UpdatedAt   time.Time
}

// IsAdmin reports whether the profile grants admin rights.
func (p *Profile) IsAdmin() bool { return p != nil && p.Role == RoleAdmin }

// ProfileUpdate carries the editable fields of a profile.
type ProfileUpdate struct {
	ID          uuid.UUID
	DisplayName string `validate:"required,max=120"`
	Role        Role   `validate:"required,oneof=user admin"`
}

// NewUser is the admin form for creating an account.
type NewUser struct {
	Email       string `validate:"required,email"`
	Password    string `validate:"required,min=6"`
	DisplayName string `validate:"required,max=120"`
}

// Manual is a troubleshooting guide with its ordered steps.
type Manual struct {
	ID          uuid.UUID
	Title       string
	Category    Category
	Description string
	AuthorID    uuid.UUID
	AuthorName  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Steps       []Step // ordered by StepOrder; empty for summary rows
}

// Step is one instruction of a manual.
type Step struct {
	ID        uuid.UUID
	ManualID  uuid.UUID
	Title     string
	Content   string
	ImageURL  string // empty when absent
	StepOrder int    // 1-based
}

// ManualInput is the submitted form of a manual.
type ManualInput struct {
	Title       string      `validate:"required,max=200"`
	Category    Category    `validate:"required,oneof=Network Printer Software Hardware"`
	Description string      `validate:"required"`
	Steps       []StepInput `validate:"required,min=1,dive"`
}

// StepInput is one submitted step; its order is its index in ManualInput.Steps.
type StepInput struct {
	Title    string `validate:"required,max=200"`
	Content  string `validate:"required"`
	ImageURL string `validate:"omitempty,url"`
}

// CanModify reports whether user (with profile) may edit or delete the manual.
func CanModify(m *Manual, u *User, p *Profile) bool {
	if m == nil || u == nil {
		return false
	}
	return m.AuthorID == u.ID || p.IsAdmin()
}
