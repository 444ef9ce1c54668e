package auth_test

import (
	"context"
	"sync"

	auth "github.com/goliatone/go-garage-auth"
	"github.com/stretchr/testify/mock"
)

// MockSessionStore implements auth.SessionStore
type MockSessionStore struct {
	mock.Mock
}

func sessionArg(args mock.Arguments, i int) *auth.Session {
	if s := args.Get(i); s != nil {
		return s.(*auth.Session)
	}
	return nil
}

func (m *MockSessionStore) GetCurrentSession(ctx context.Context) (*auth.Session, error) {
	args := m.Called(ctx)
	return sessionArg(args, 0), args.Error(1)
}

func (m *MockSessionStore) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	args := m.Called(ctx, email, password)
	return sessionArg(args, 0), args.Error(1)
}

func (m *MockSessionStore) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*auth.Session, error) {
	args := m.Called(ctx, email, password, metadata)
	return sessionArg(args, 0), args.Error(1)
}

func (m *MockSessionStore) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSessionStore) UpdateMetadata(ctx context.Context, fields map[string]any) error {
	args := m.Called(ctx, fields)
	return args.Error(0)
}

func (m *MockSessionStore) OnSessionChange(handler auth.SessionChangeHandler) (auth.Subscription, error) {
	args := m.Called(handler)
	var sub auth.Subscription
	if s := args.Get(0); s != nil {
		sub = s.(auth.Subscription)
	}
	return sub, args.Error(1)
}

// MockProfileRepository implements auth.ProfileRepository
type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) GetProfile(ctx context.Context, userID string) (*auth.ProfileRecord, error) {
	args := m.Called(ctx, userID)
	var record *auth.ProfileRecord
	if r := args.Get(0); r != nil {
		record = r.(*auth.ProfileRecord)
	}
	return record, args.Error(1)
}

func (m *MockProfileRepository) CreateProfile(ctx context.Context, record *auth.ProfileRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockProfileRepository) UpdateProfile(ctx context.Context, userID string, fields auth.ProfileUpdate) error {
	args := m.Called(ctx, userID, fields)
	return args.Error(0)
}

// memProfiles is an in-memory auth.ProfileRepository. beforeGet and
// afterGet, when set, run around every lookup and may block. afterGet sees
// the row after it was read.
type memProfiles struct {
	mu        sync.Mutex
	rows      map[string]auth.ProfileRecord
	creates   int
	beforeGet func(userID string)
	afterGet  func(userID string)
}

func newMemProfiles(records ...auth.ProfileRecord) *memProfiles {
	p := &memProfiles{rows: map[string]auth.ProfileRecord{}}
	for _, r := range records {
		p.rows[r.ID] = r
	}
	return p
}

func (p *memProfiles) GetProfile(_ context.Context, userID string) (*auth.ProfileRecord, error) {
	p.mu.Lock()
	hook := p.beforeGet
	p.mu.Unlock()
	if hook != nil {
		hook(userID)
	}

	p.mu.Lock()
	row, ok := p.rows[userID]
	after := p.afterGet
	p.mu.Unlock()

	if after != nil {
		after(userID)
	}
	if !ok {
		return nil, auth.ErrProfileNotFound
	}
	return &row, nil
}

// holdFirstRead makes the first lookup of userID block after reading its
// row. entered is closed once that lookup read the row; closing release
// lets it return.
func (p *memProfiles) holdFirstRead(userID string) (entered chan struct{}, release chan struct{}) {
	entered = make(chan struct{})
	release = make(chan struct{})
	var once sync.Once

	p.mu.Lock()
	p.afterGet = func(id string) {
		if id != userID {
			return
		}
		held := false
		once.Do(func() {
			held = true
			close(entered)
		})
		if held {
			<-release
		}
	}
	p.mu.Unlock()
	return entered, release
}

func (p *memProfiles) CreateProfile(_ context.Context, record *auth.ProfileRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.rows[record.ID]; ok {
		return auth.ErrProfileExists
	}
	p.creates++
	p.rows[record.ID] = *record
	return nil
}

func (p *memProfiles) UpdateProfile(_ context.Context, userID string, fields auth.ProfileUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	row, ok := p.rows[userID]
	if !ok {
		return auth.ErrProfileNotFound
	}
	if fields.DisplayName != nil {
		row.DisplayName = *fields.DisplayName
	}
	if fields.AvatarURL != nil {
		row.AvatarURL = *fields.AvatarURL
	}
	if fields.Bio != nil {
		row.Bio = *fields.Bio
	}
	if fields.Location != nil {
		row.Location = *fields.Location
	}
	p.rows[userID] = row
	return nil
}

func (p *memProfiles) get(userID string) (auth.ProfileRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	row, ok := p.rows[userID]
	return row, ok
}

func (p *memProfiles) createCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creates
}

// handlerBox keeps the handler registered through OnSessionChange.
type handlerBox struct {
	mu           sync.Mutex
	handler      auth.SessionChangeHandler
	unsubscribed int
}

func (b *handlerBox) set(h auth.SessionChangeHandler) {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()
}

func (b *handlerBox) fire(event auth.SessionEvent, session *auth.Session) {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	if h != nil {
		h(event, session)
	}
}

func (b *handlerBox) unsubscribeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unsubscribed
}

func expectSubscribe(store *MockSessionStore, box *handlerBox) {
	store.On("OnSessionChange", mock.Anything).
		Run(func(args mock.Arguments) {
			box.set(args.Get(0).(auth.SessionChangeHandler))
		}).
		Return(auth.SubscriptionFunc(func() {
			box.mu.Lock()
			box.unsubscribed++
			box.mu.Unlock()
		}), nil).
		Once()
}

type navRecorder struct {
	mu      sync.Mutex
	signals []auth.NavigationSignal
}

func (r *navRecorder) record(s auth.NavigationSignal) {
	r.mu.Lock()
	r.signals = append(r.signals, s)
	r.mu.Unlock()
}

func (r *navRecorder) count(dest auth.Destination) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.signals {
		if s.Destination == dest {
			n++
		}
	}
	return n
}

func (r *navRecorder) all() []auth.NavigationSignal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]auth.NavigationSignal(nil), r.signals...)
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []auth.Notice
}

func (r *noticeRecorder) Notify(n auth.Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *noticeRecorder) all() []auth.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]auth.Notice(nil), r.notices...)
}

type activityRecorder struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *activityRecorder) Record(_ context.Context, e auth.ActivityEvent) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *activityRecorder) count(t auth.ActivityEventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.EventType == t {
			n++
		}
	}
	return n
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
