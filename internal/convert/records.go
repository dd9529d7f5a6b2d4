// Package convert maps backend JSON records to domain models and back.
package convert

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	model "github.com/and161185/troubleshooter/internal/model"
	u "github.com/gofrs/uuid/v5"
)

// --- wire records ---

// ManualRecord is a row of the manuals table, optionally with embedded steps.
type ManualRecord struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Category    string       `json:"category"`
	Description string       `json:"description"`
	AuthorID    string       `json:"author_id"`
	AuthorName  string       `json:"author_name"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   *time.Time   `json:"updated_at"`
	Steps       []StepRecord `json:"steps,omitempty"`
}

// StepRecord is a row of the steps table.
type StepRecord struct {
	ID        string  `json:"id"`
	ManualID  string  `json:"manual_id"`
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	ImageURL  *string `json:"image_url"`
	StepOrder int     `json:"step_order"`
}

// ProfileRecord is a row of the profiles table.
type ProfileRecord struct {
	ID          string     `json:"id"`
	DisplayName *string    `json:"display_name"`
	Role        string     `json:"role"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// UserRecord is the auth user object.
type UserRecord struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// SessionRecord is the auth token response.
type SessionRecord struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type"`
	ExpiresIn    int64      `json:"expires_in"`
	ExpiresAt    int64      `json:"expires_at"`
	RefreshToken string     `json:"refresh_token"`
	User         UserRecord `json:"user"`
}

// --- helpers ---

func parseID(field, s string) (u.UUID, error) {
	id, err := u.FromString(s)
	if err != nil {
		return u.Nil, fmt.Errorf("%s: %w", field, err)
	}
	return id, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func decodeAll[R any, M any](raws []json.RawMessage, conv func(R) (M, error)) ([]M, error) {
	out := make([]M, 0, len(raws))
	for i, raw := range raws {
		var rec R
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("record[%d]: %w", i, err)
		}
		m, err := conv(rec)
		if err != nil {
			return nil, fmt.Errorf("record[%d]: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// --- Manual / Step ---

// ManualFromRecord validates ids and sorts embedded steps by step_order.
func ManualFromRecord(r ManualRecord) (model.Manual, error) {
	id, err := parseID("id", r.ID)
	if err != nil {
		return model.Manual{}, err
	}
	m := model.Manual{
		ID:          id,
		Title:       r.Title,
		Category:    model.Category(r.Category),
		Description: r.Description,
		AuthorName:  r.AuthorName,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   deref(r.UpdatedAt),
	}
	if r.AuthorID != "" {
		if m.AuthorID, err = parseID("author_id", r.AuthorID); err != nil {
			return model.Manual{}, err
		}
	}
	m.Steps = make([]model.Step, 0, len(r.Steps))
	for i := range r.Steps {
		st, err := StepFromRecord(r.Steps[i])
		if err != nil {
			return model.Manual{}, fmt.Errorf("steps[%d]: %w", i, err)
		}
		m.Steps = append(m.Steps, st)
	}
	SortSteps(m.Steps)
	return m, nil
}

// StepFromRecord converts a step row.
func StepFromRecord(r StepRecord) (model.Step, error) {
	id, err := parseID("id", r.ID)
	if err != nil {
		return model.Step{}, err
	}
	st := model.Step{
		ID:        id,
		Title:     r.Title,
		Content:   r.Content,
		ImageURL:  deref(r.ImageURL),
		StepOrder: r.StepOrder,
	}
	if r.ManualID != "" {
		if st.ManualID, err = parseID("manual_id", r.ManualID); err != nil {
			return model.Step{}, err
		}
	}
	return st, nil
}

// SortSteps orders steps by StepOrder ascending.
func SortSteps(steps []model.Step) {
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].StepOrder < steps[j].StepOrder })
}

// ManualsFromJSON decodes a list of manual rows.
func ManualsFromJSON(raws []json.RawMessage) ([]model.Manual, error) {
	return decodeAll(raws, ManualFromRecord)
}

// ManualRow builds the stored fields of a manual from submitted input.
func ManualRow(in model.ManualInput) map[string]any {
	return map[string]any{
		"title":       in.Title,
		"category":    string(in.Category),
		"description": in.Description,
	}
}

// StepRows builds step rows with step_order 1..N in submission order.
func StepRows(manualID u.UUID, steps []model.StepInput) []map[string]any {
	rows := make([]map[string]any, 0, len(steps))
	for i, s := range steps {
		var img any
		if s.ImageURL != "" {
			img = s.ImageURL
		}
		rows = append(rows, map[string]any{
			"manual_id":  manualID.String(),
			"title":      s.Title,
			"content":    s.Content,
			"image_url":  img,
			"step_order": i + 1,
		})
	}
	return rows
}

// --- Profile ---

// ProfileFromRecord converts a profile row; unknown roles become "user".
func ProfileFromRecord(r ProfileRecord) (model.Profile, error) {
	id, err := parseID("id", r.ID)
	if err != nil {
		return model.Profile{}, err
	}
	return model.Profile{
		ID:          id,
		DisplayName: deref(r.DisplayName),
		Role:        model.ParseRole(r.Role),
		UpdatedAt:   deref(r.UpdatedAt),
	}, nil
}

// ProfilesFromJSON decodes a list of profile rows.
func ProfilesFromJSON(raws []json.RawMessage) ([]model.Profile, error) {
	return decodeAll(raws, ProfileFromRecord)
}

// --- User / Session ---

// UserFromRecord converts an auth user object.
func UserFromRecord(r UserRecord) (model.User, error) {
	id, err := parseID("user.id", r.ID)
	if err != nil {
		return model.User{}, err
	}
	usr := model.User{ID: id, Email: r.Email}
	if v, ok := r.UserMetadata["display_name"].(string); ok {
		usr.DisplayName = v
	}
	return usr, nil
}

// SessionFromRecord converts a token response. Expiry uses expires_at, else now+expires_in.
func SessionFromRecord(r SessionRecord, now time.Time) (*model.Session, error) {
	if r.AccessToken == "" {
		return nil, fmt.Errorf("session: empty access token")
	}
	usr, err := UserFromRecord(r.User)
	if err != nil {
		return nil, err
	}
	s := &model.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		User:         usr,
	}
	switch {
	case r.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return s, nil
}
