// Package backend defines the surface of the hosted backend (auth, tables, object storage)
// consumed by the session manager, repositories and controllers.
package backend

import (
	"context"
	"encoding/json"
	"io"

	"github.com/and161185/troubleshooter/internal/model"
)

// Auth is the identity half of the backend.
type Auth interface {
	// SignInWithPassword exchanges credentials for a session and stores it.
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	// SignUp registers an account; the result has no session when confirmation is required.
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*model.AuthResult, error)
	// SignOut drops the local session first, then revokes it remotely.
	SignOut(ctx context.Context) error
	// GetSession returns the persisted session, or nil when signed out.
	GetSession(ctx context.Context) (*model.Session, error)
	// Subscribe returns a stream of auth events and an idempotent disposer.
	Subscribe() (<-chan model.AuthEvent, func())
	// ResetPasswordForEmail dispatches a recovery link pointing to redirectTo.
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	// SessionFromURL consumes a recovery or magic link and stores its session.
	SessionFromURL(ctx context.Context, link string) (*model.Session, error)
	// UpdateUser patches the signed-in user.
	UpdateUser(ctx context.Context, upd model.UserUpdate) (*model.User, error)
}

// Row is a single record sent to a table.
type Row = map[string]any

// Tables is the relational half of the backend.
type Tables interface {
	// Select returns raw JSON records matching q.
	Select(ctx context.Context, table string, q Query) ([]json.RawMessage, error)
	// Insert creates rows and returns them as stored.
	Insert(ctx context.Context, table string, rows []Row) ([]json.RawMessage, error)
	// Update patches matching rows and returns the affected count.
	Update(ctx context.Context, table string, patch Row, filters ...Filter) (int64, error)
	// Delete removes matching rows and returns the affected count.
	Delete(ctx context.Context, table string, filters ...Filter) (int64, error)
}

// Storage is the object-store half of the backend.
type Storage interface {
	// Upload stores body under bucket/key.
	Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
	// PublicURL returns the stable public address of bucket/key.
	PublicURL(bucket, key string) string
}

// Filter is an equality predicate on a column.
type Filter struct {
	Column string
	Value  string
}

// Eq builds a Filter.
func Eq(column, value string) Filter { return Filter{Column: column, Value: value} }

// Order sorts a Select by a column.
type Order struct {
	Column string
	Desc   bool
}

// Query describes a Select.
type Query struct {
	Columns string   // defaults to "*"
	Embed   []string // related tables returned inline, e.g. "steps"
	Filters []Filter
	Order   *Order
	Limit   int // 0 means no limit
}
