package local

import (
	"context"
	"sync"
	"testing"
	"time"

	auth "github.com/goliatone/go-garage-auth"
	garagerepo "github.com/goliatone/go-garage-auth/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordedEvent struct {
	event   auth.SessionEvent
	session *auth.Session
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) handle(event auth.SessionEvent, session *auth.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{event: event, session: session})
}

func (r *eventRecorder) snapshot() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setupStore(t *testing.T) (*Store, *testClock) {
	t.Helper()

	client, err := garagerepo.Open(garagerepo.MemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.DB().Close() })
	require.NoError(t, garagerepo.Migrate(context.Background(), client))
	db := client.DB()

	clock := &testClock{now: time.Now().UTC().Truncate(time.Second)}
	store, err := NewStore(db, []byte("test-secret"),
		WithHashCost(bcrypt.MinCost),
		WithTokenTTL(time.Hour),
		WithClock(clock.Now),
	)
	require.NoError(t, err)
	return store, clock
}

func TestNewStoreRequiresSecret(t *testing.T) {
	client, err := garagerepo.Open(garagerepo.MemoryConfig())
	require.NoError(t, err)
	defer client.DB().Close()

	store, err := NewStore(client.DB(), nil)
	require.Error(t, err)
	assert.Nil(t, store)
}

func TestSignUpDoesNotAuthenticate(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	rec := &eventRecorder{}
	_, err := store.OnSessionChange(rec.handle)
	require.NoError(t, err)

	session, err := store.SignUp(ctx, "A@B.com", "secret1", map[string]any{auth.MetadataDisplayName: "Anna"})
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.NotEmpty(t, session.User.ID)
	assert.Equal(t, "a@b.com", session.User.Email)
	assert.Equal(t, "Anna", session.User.MetadataString(auth.MetadataDisplayName))
	assert.Empty(t, session.AccessToken)

	current, err := store.GetCurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
	assert.Empty(t, rec.snapshot())
}

func TestSignUpIDIsStableForEmail(t *testing.T) {
	first, _ := setupStore(t)
	second, _ := setupStore(t)
	ctx := context.Background()

	a, err := first.SignUp(ctx, "a@b.com", "secret1", nil)
	require.NoError(t, err)
	b, err := second.SignUp(ctx, "a@b.com", "secret1", nil)
	require.NoError(t, err)
	assert.Equal(t, a.User.ID, b.User.ID)
}

func TestSignUpRejections(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.SignUp(ctx, "not-an-email", "secret1", nil)
	require.Error(t, err)
	assert.Equal(t, auth.AuthErrorInvalidEmail, auth.ClassifyAuthError(err))

	_, err = store.SignUp(ctx, "a@b.com", "123", nil)
	require.Error(t, err)
	assert.Equal(t, auth.AuthErrorWeakPassword, auth.ClassifyAuthError(err))
	assert.Equal(t, "Password should be at least 6 characters", auth.ErrorMessage(err))

	_, err = store.SignUp(ctx, "a@b.com", "secret1", nil)
	require.NoError(t, err)

	_, err = store.SignUp(ctx, " A@B.COM ", "secret1", nil)
	require.Error(t, err)
	assert.Equal(t, auth.AuthErrorAlreadyRegistered, auth.ClassifyAuthError(err))
}

func TestSignInEmitsSignedIn(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	registered, err := store.SignUp(ctx, "a@b.com", "secret1", nil)
	require.NoError(t, err)

	rec := &eventRecorder{}
	_, err = store.OnSessionChange(rec.handle)
	require.NoError(t, err)

	session, err := store.SignInWithPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, session.User.ID)
	assert.NotEmpty(t, session.AccessToken)

	subject, err := store.ParseToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, subject)

	events := rec.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, auth.SessionEventSignedIn, events[0].event)
	require.NotNil(t, events[0].session)
	assert.Equal(t, registered.User.ID, events[0].session.User.ID)

	current, err := store.GetCurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, registered.User.ID, current.User.ID)
}

func TestSignInInvalidCredentials(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.SignUp(ctx, "a@b.com", "secret1", nil)
	require.NoError(t, err)

	_, err = store.SignInWithPassword(ctx, "a@b.com", "wrong-password")
	require.Error(t, err)
	assert.Equal(t, auth.AuthErrorInvalidCredentials, auth.ClassifyAuthError(err))

	_, err = store.SignInWithPassword(ctx, "nobody@b.com", "secret1")
	require.Error(t, err)
	assert.Equal(t, auth.AuthErrorInvalidCredentials, auth.ClassifyAuthError(err))
}

func TestSignOut(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	err := store.SignOut(ctx)
	require.Error(t, err)
	assert.True(t, auth.IsSessionMissing(err))

	_, err = store.SignUp(ctx, "a@b.com", "secret1", nil)
	require.NoError(t, err)
	_, err = store.SignInWithPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	rec := &eventRecorder{}
	_, err = store.OnSessionChange(rec.handle)
	require.NoError(t, err)

	require.NoError(t, store.SignOut(ctx))

	events := rec.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, auth.SessionEventSignedOut, events[0].event)
	assert.Nil(t, events[0].session)

	current, err := store.GetCurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestUpdateMetadata(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	err := store.UpdateMetadata(ctx, map[string]any{auth.MetadataDisplayName: "Mario"})
	require.Error(t, err)
	assert.True(t, auth.IsSessionMissing(err))

	_, err = store.SignUp(ctx, "a@b.com", "secret1", map[string]any{auth.MetadataDisplayName: "a"})
	require.NoError(t, err)
	_, err = store.SignInWithPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	rec := &eventRecorder{}
	_, err = store.OnSessionChange(rec.handle)
	require.NoError(t, err)

	require.NoError(t, store.UpdateMetadata(ctx, map[string]any{auth.MetadataDisplayName: "Mario"}))

	current, err := store.GetCurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "Mario", current.User.MetadataString(auth.MetadataDisplayName))

	events := rec.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, auth.SessionEventUserUpdated, events[0].event)

	require.NoError(t, store.SignOut(ctx))
	session, err := store.SignInWithPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Mario", session.User.MetadataString(auth.MetadataDisplayName))
}

func TestExpiredSessionReadsAsSignedOut(t *testing.T) {
	store, clock := setupStore(t)
	ctx := context.Background()

	_, err := store.SignUp(ctx, "a@b.com", "secret1", nil)
	require.NoError(t, err)
	_, err = store.SignInWithPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	rec := &eventRecorder{}
	_, err = store.OnSessionChange(rec.handle)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)

	current, err := store.GetCurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	events := rec.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, auth.SessionEventSignedOut, events[0].event)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	rec := &eventRecorder{}
	sub, err := store.OnSessionChange(rec.handle)
	require.NoError(t, err)

	sub.Unsubscribe()
	sub.Unsubscribe()

	_, err = store.SignUp(ctx, "a@b.com", "secret1", nil)
	require.NoError(t, err)
	_, err = store.SignInWithPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)
	assert.Empty(t, rec.snapshot())

	_, err = store.OnSessionChange(nil)
	assert.Error(t, err)
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	store, _ := setupStore(t)
	other, _ := setupStore(t)
	other.secret = []byte("another-secret")
	ctx := context.Background()

	_, err := other.SignUp(ctx, "a@b.com", "secret1", nil)
	require.NoError(t, err)
	session, err := other.SignInWithPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	_, err = store.ParseToken(session.AccessToken)
	assert.Error(t, err)
}
