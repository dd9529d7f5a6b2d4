package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/and161185/troubleshooter/internal/backend"
	"github.com/and161185/troubleshooter/internal/config"
	"github.com/and161185/troubleshooter/internal/errs"
	"github.com/and161185/troubleshooter/internal/model"
	"github.com/and161185/troubleshooter/internal/repository"
	"github.com/gofrs/uuid/v5"
)

func fastTimeouts() config.Timeouts {
	return config.Timeouts{
		Bootstrap: time.Second,
		SignIn:    time.Second,
		SignUp:    time.Second,
		SignOut:   time.Second,
		Profile:   time.Second,
		List:      time.Second,
		AdminList: time.Second,
		Save:      time.Second,
		Delete:    time.Second,
		Role:      time.Second,
		Upload:    time.Second,

		ResetPassword: time.Second,
	}
}

func newUser(name string) model.User {
	return model.User{ID: uuid.Must(uuid.NewV4()), Email: name + "@internal.com", DisplayName: name}
}

func sessionFor(u model.User) *model.Session {
	return &model.Session{AccessToken: "at-" + u.DisplayName, RefreshToken: "rt", User: u}
}

// fakeAuth records calls and lets tests push auth events.
type fakeAuth struct {
	mu sync.Mutex

	events   *backend.Broadcaster
	session  *model.Session
	getErr   error
	getBlock chan struct{} // when set, GetSession waits for it to close

	signInEmail, signInPassword string
	signInErr                   error

	signUpEmail, signUpPassword string
	signUpMeta                  map[string]any
	signUpErr                   error

	signOutCalls int
	signOutErr   error
	signOutBlock chan struct{}

	resetEmail, resetRedirect string
	resetErr                  error
	resetBlock                chan struct{}

	link    string
	linkErr error

	updates   []model.UserUpdate
	updateErr error
}

var _ backend.Auth = (*fakeAuth)(nil)

func newFakeAuth() *fakeAuth { return &fakeAuth{events: backend.NewBroadcaster(nil)} }

func (f *fakeAuth) SignInWithPassword(_ context.Context, email, password string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signInEmail, f.signInPassword = email, password
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return f.session, nil
}

func (f *fakeAuth) SignUp(_ context.Context, email, password string, metadata map[string]any) (*model.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signUpEmail, f.signUpPassword, f.signUpMeta = email, password, metadata
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	return &model.AuthResult{User: model.User{ID: uuid.Must(uuid.NewV4()), Email: email}}, nil
}

func (f *fakeAuth) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.signOutCalls++
	block, err := f.signOutBlock, f.signOutErr
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (f *fakeAuth) GetSession(context.Context) (*model.Session, error) {
	f.mu.Lock()
	block := f.getBlock
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, f.getErr
}

func (f *fakeAuth) Subscribe() (<-chan model.AuthEvent, func()) { return f.events.Subscribe() }

func (f *fakeAuth) ResetPasswordForEmail(_ context.Context, email, redirectTo string) error {
	f.mu.Lock()
	block := f.resetBlock
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetEmail, f.resetRedirect = email, redirectTo
	return f.resetErr
}

func (f *fakeAuth) SessionFromURL(_ context.Context, link string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.link = link
	return f.session, f.linkErr
}

func (f *fakeAuth) UpdateUser(_ context.Context, upd model.UserUpdate) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, upd)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.session == nil {
		return nil, errs.ErrUnauthorized
	}
	u := f.session.User
	if name, ok := upd.Data["display_name"].(string); ok {
		u.DisplayName = name
	}
	return &u, nil
}

func (f *fakeAuth) emit(t model.AuthEventType, s *model.Session) {
	f.events.Publish(model.AuthEvent{Type: t, Session: s})
}

// fakeProfileRepo is an in-memory ProfileRepository.
type fakeProfileRepo struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]model.Profile
	getErr   error
	getDelay time.Duration
	listErr  error
	patches  []repository.ProfilePatch
	updErr   error
	deleted  []uuid.UUID
	delErr   error
}

var _ repository.ProfileRepository = (*fakeProfileRepo)(nil)

func newFakeProfiles(ps ...model.Profile) *fakeProfileRepo {
	f := &fakeProfileRepo{byID: map[uuid.UUID]model.Profile{}}
	for _, p := range ps {
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakeProfileRepo) Get(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	f.mu.Lock()
	delay := f.getDelay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProfileRepo) List(context.Context) ([]model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.Profile, 0, len(f.byID))
	for _, p := range f.byID {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProfileRepo) Update(_ context.Context, id uuid.UUID, patch repository.ProfilePatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, patch)
	if f.updErr != nil {
		return f.updErr
	}
	p, ok := f.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	if patch.DisplayName != nil {
		p.DisplayName = *patch.DisplayName
	}
	if patch.Role != nil {
		p.Role = *patch.Role
	}
	f.byID[id] = p
	return nil
}

func (f *fakeProfileRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.byID, id)
	return nil
}

// fakeManualRepo serves a fixed list and records writes.
type fakeManualRepo struct {
	mu sync.Mutex

	list      []model.Manual
	listErr   error
	listBlock chan struct{}
	summaries []model.Manual
	sumErr    error
	sumLimit  int

	created   []model.Manual
	createErr error
	updated   []model.ManualInput
	updateErr error
	deleted   []uuid.UUID
	deleteErr error
}

var _ repository.ManualRepository = (*fakeManualRepo)(nil)

func (f *fakeManualRepo) List(ctx context.Context) ([]model.Manual, error) {
	f.mu.Lock()
	block := f.listBlock
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Manual(nil), f.list...), nil
}

func (f *fakeManualRepo) ListSummaries(_ context.Context, limit int) ([]model.Manual, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sumLimit = limit
	if f.sumErr != nil {
		return nil, f.sumErr
	}
	out := f.summaries
	if len(out) > limit {
		out = out[:limit]
	}
	return append([]model.Manual(nil), out...), nil
}

func (f *fakeManualRepo) Get(_ context.Context, id uuid.UUID) (*model.Manual, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.list {
		if m.ID == id {
			c := m
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeManualRepo) Create(_ context.Context, m model.Manual) (*model.Manual, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	m.ID = uuid.Must(uuid.NewV4())
	m.CreatedAt = time.Now()
	f.created = append(f.created, m)
	f.list = append([]model.Manual{m}, f.list...)
	return &m, nil
}

func (f *fakeManualRepo) Update(_ context.Context, id uuid.UUID, in model.ManualInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, in)
	return f.updateErr
}

func (f *fakeManualRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.list[:0:0]
	for _, m := range f.list {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	f.list = kept
	return nil
}

type fakeStepRepo struct {
	mu        sync.Mutex
	calls     []string
	inserted  [][]model.StepInput
	deleteErr error
	insertErr error
}

var _ repository.StepRepository = (*fakeStepRepo)(nil)

func (f *fakeStepRepo) DeleteByManual(_ context.Context, manualID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete")
	return f.deleteErr
}

func (f *fakeStepRepo) InsertBatch(_ context.Context, manualID uuid.UUID, steps []model.StepInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "insert")
	f.inserted = append(f.inserted, append([]model.StepInput(nil), steps...))
	return f.insertErr
}

// fakeIdentity is a fixed signed-in user for controller tests.
type fakeIdentity struct {
	mu        sync.Mutex
	user      *model.User
	profile   *model.Profile
	refreshes int
	names     []string
	nameErr   error
}

var _ ProfileSession = (*fakeIdentity)(nil)

func (f *fakeIdentity) CurrentUser() *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return nil
	}
	u := *f.user
	return &u
}

func (f *fakeIdentity) CurrentProfile() *model.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profile == nil {
		return nil
	}
	p := *f.profile
	return &p
}

func (f *fakeIdentity) RefreshProfile(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return nil
}

func (f *fakeIdentity) UpdateDisplayName(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	return f.nameErr
}

type fakeStorage struct {
	mu          sync.Mutex
	bucket, key string
	contentType string
	body        []byte
	err         error
}

var _ backend.Storage = (*fakeStorage)(nil)

func (f *fakeStorage) Upload(_ context.Context, bucket, key string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bucket, f.key, f.contentType, f.body = bucket, key, contentType, data
	return f.err
}

func (f *fakeStorage) PublicURL(bucket, key string) string {
	return "https://proj.supabase.co/storage/v1/object/public/" + bucket + "/" + key
}
