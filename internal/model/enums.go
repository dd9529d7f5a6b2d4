package model

// Role is a profile role.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalises unknown values to RoleUser.
func ParseRole(s string) Role {
	if r := Role(s); r.IsValid() {
		return r
	}
	return RoleUser
}

// Category classifies a manual.
type Category string

const (
	CategoryNetwork  Category = "Network"
	CategoryPrinter  Category = "Printer"
	CategorySoftware Category = "Software"
	CategoryHardware Category = "Hardware"

	// CategoryAll is a filter value only, never stored.
	CategoryAll Category = "All"
)

// Categories lists storable categories in display order.
var Categories = []Category{CategoryNetwork, CategoryPrinter, CategorySoftware, CategoryHardware}

// IsValid reports whether c is a storable category.
func (c Category) IsValid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// AuthEventType names an auth state change published by the backend adapter.
type AuthEventType string

const (
	EventSignedIn         AuthEventType = "SIGNED_IN"
	EventSignedOut        AuthEventType = "SIGNED_OUT"
	EventTokenRefreshed   AuthEventType = "TOKEN_REFRESHED"
	EventUserUpdated      AuthEventType = "USER_UPDATED"
	EventPasswordRecovery AuthEventType = "PASSWORD_RECOVERY"
)

// AuthEvent is one auth state change; Session is nil after sign-out.
type AuthEvent struct {
	Type    AuthEventType
	Session *Session
}

// StatusKind classifies a controller status message.
type StatusKind string

const (
	StatusError   StatusKind = "error"
	StatusSuccess StatusKind = "success"
)

// Status is the dismissible message a controller exposes after an operation.
type Status struct {
	Kind    StatusKind
	Message string
}

// IsZero reports whether no status is set.
func (s Status) IsZero() bool { return s.Kind == "" && s.Message == "" }
