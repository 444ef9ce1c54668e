package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-garage-auth"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultTokenTTL = time.Hour
	DefaultIssuer   = "garage-auth"
)

// AccountModel is the Bun model for garage accounts.
type AccountModel struct {
	bun.BaseModel `bun:"table:garage_accounts"`

	ID           string         `bun:"id,pk"`
	Email        string         `bun:"email,notnull"`
	PasswordHash string         `bun:"password_hash,notnull"`
	Metadata     map[string]any `bun:"metadata,type:text,notnull"`
	CreatedAt    time.Time      `bun:"created_at,notnull"`
	UpdatedAt    time.Time      `bun:"updated_at,notnull"`
}

// Option configures a Store.
type Option func(*Store)

// WithHashCost sets the bcrypt cost used for new passwords.
func WithHashCost(cost int) Option {
	return func(s *Store) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.hashCost = cost
		}
	}
}

// WithTokenTTL sets how long an access token stays valid.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithIssuer sets the iss claim of access tokens.
func WithIssuer(issuer string) Option {
	return func(s *Store) {
		if issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithMinPasswordLength sets the shortest password accepted by SignUp.
func WithMinPasswordLength(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.minPassword = n
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger auth.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLoggerProvider resolves the store logger from provider.
func WithLoggerProvider(provider auth.LoggerProvider) Option {
	return func(s *Store) {
		_, s.logger = auth.ResolveLogger("garage.local_store", provider, nil)
	}
}

// Store implements auth.SessionStore.
type Store struct {
	db          bun.IDB
	secret      []byte
	ttl         time.Duration
	issuer      string
	hashCost    int
	minPassword int
	now         func() time.Time
	logger      auth.Logger

	mu       sync.Mutex
	session  *auth.Session
	nextID   int
	handlers map[int]auth.SessionChangeHandler
}

var _ auth.SessionStore = (*Store)(nil)

// NewStore creates a store over db. secret signs the access tokens.
func NewStore(db bun.IDB, secret []byte, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, goerrors.New("local store: database is required", goerrors.CategoryBadInput)
	}
	if len(secret) == 0 {
		return nil, goerrors.New("local store: signing secret is required", goerrors.CategoryBadInput)
	}

	s := &Store{
		db:          db,
		secret:      append([]byte(nil), secret...),
		ttl:         DefaultTokenTTL,
		issuer:      DefaultIssuer,
		hashCost:    bcrypt.DefaultCost,
		minPassword: auth.DefaultMinPasswordLength,
		now:         time.Now,
		logger:      auth.DefaultLogger(),
		handlers:    map[int]auth.SessionChangeHandler{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// GetCurrentSession implements auth.SessionStore. A session whose token no
// longer validates is dropped and reported as signed out.
func (s *Store) GetCurrentSession(ctx context.Context) (*auth.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	current := s.session
	s.mu.Unlock()
	if current == nil {
		return nil, nil
	}

	if _, err := s.ParseToken(current.AccessToken); err != nil {
		s.mu.Lock()
		expired := s.session == current
		if expired {
			s.session = nil
		}
		s.mu.Unlock()
		if !expired {
			return s.GetCurrentSession(ctx)
		}

		s.logger.Info("session expired", "user_id", current.User.ID)
		s.emit(auth.SessionEventSignedOut, nil)
		return nil, nil
	}
	return copySession(current), nil
}

// SignInWithPassword implements auth.SessionStore.
func (s *Store) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	account, err := s.findByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.logger.Debug("sign in for unknown account")
			return nil, errInvalidLogin()
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, errInvalidLogin()
		}
		return nil, err
	}

	session, err := s.issueSession(account)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	s.logger.Info("account signed in", "user_id", account.ID)
	s.emit(auth.SessionEventSignedIn, session)
	return copySession(session), nil
}

// SignUp implements auth.SessionStore. Registration does not sign the
// account in: the returned session carries the identity but no token.
func (s *Store) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*auth.Session, error) {
	email = normalizeEmail(email)
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return nil, errInvalidEmail()
	}
	if err := validation.Validate(password, validation.Required, validation.RuneLength(s.minPassword, 0)); err != nil {
		return nil, errWeakPassword(fmt.Sprintf(MessageWeakPassword, s.minPassword))
	}

	if _, err := s.findByEmail(ctx, email); err == nil {
		return nil, errAlreadyRegistered()
	} else if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	id, err := hashid.NewUUID(email)
	if err != nil {
		s.logger.Warn("unable to derive account id from email, using random id", "error", err)
		id = uuid.New()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to hash password")
	}

	now := s.now()
	account := &AccountModel{
		ID:           id.String(),
		Email:        email,
		PasswordHash: string(hash),
		Metadata:     copyMetadata(metadata),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	res, err := s.db.NewInsert().
		Model(account).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, errAlreadyRegistered()
	}

	s.logger.Info("account registered", "user_id", account.ID)
	return &auth.Session{User: toIdentity(account)}, nil
}

// SignOut implements auth.SessionStore.
func (s *Store) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	current := s.session
	s.session = nil
	s.mu.Unlock()

	if current == nil {
		return errSessionMissing()
	}

	s.logger.Info("account signed out", "user_id", current.User.ID)
	s.emit(auth.SessionEventSignedOut, nil)
	return nil
}

// UpdateMetadata implements auth.SessionStore. fields are merged into the
// metadata of the signed in account.
func (s *Store) UpdateMetadata(ctx context.Context, fields map[string]any) error {
	s.mu.Lock()
	current := s.session
	s.mu.Unlock()
	if current == nil {
		return errSessionMissing()
	}

	account, err := s.findByID(ctx, current.User.ID)
	if err != nil {
		return err
	}

	if account.Metadata == nil {
		account.Metadata = map[string]any{}
	}
	for k, v := range fields {
		account.Metadata[k] = v
	}
	account.UpdatedAt = s.now()

	_, err = s.db.NewUpdate().
		Model(account).
		Column("metadata", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.session == nil || s.session.User.ID != account.ID {
		s.mu.Unlock()
		return nil
	}
	s.session.User.Metadata = copyMetadata(account.Metadata)
	updated := copySession(s.session)
	s.mu.Unlock()

	s.emit(auth.SessionEventUserUpdated, updated)
	return nil
}

// OnSessionChange implements auth.SessionStore.
func (s *Store) OnSessionChange(handler auth.SessionChangeHandler) (auth.Subscription, error) {
	if handler == nil {
		return nil, goerrors.New("session change handler is required", goerrors.CategoryBadInput)
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = handler
	s.mu.Unlock()

	var once sync.Once
	return auth.SubscriptionFunc(func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.handlers, id)
			s.mu.Unlock()
		})
	}), nil
}

// ParseToken validates an access token issued by the store and returns the
// account id it was issued for.
func (s *Store) ParseToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryAuth, "invalid access token").
			WithCode(goerrors.CodeUnauthorized)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", goerrors.New("invalid access token", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}
	return claims.Subject, nil
}

func (s *Store) issueSession(account *AccountModel) (*auth.Session, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)

	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   account.ID,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to sign access token")
	}

	return &auth.Session{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User:        toIdentity(account),
	}, nil
}

func (s *Store) emit(event auth.SessionEvent, session *auth.Session) {
	s.mu.Lock()
	handlers := make([]auth.SessionChangeHandler, 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(event, copySession(session))
	}
}

func (s *Store) findByEmail(ctx context.Context, email string) (*AccountModel, error) {
	account := &AccountModel{}
	err := s.db.NewSelect().
		Model(account).
		Where("email = ?", normalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Store) findByID(ctx context.Context, id string) (*AccountModel, error) {
	account := &AccountModel{}
	err := s.db.NewSelect().
		Model(account).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, errSessionMissing()
		}
		return nil, err
	}
	return account, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toIdentity(account *AccountModel) auth.Identity {
	return auth.Identity{
		ID:        account.ID,
		Email:     account.Email,
		Metadata:  copyMetadata(account.Metadata),
		CreatedAt: account.CreatedAt,
	}
}

func copySession(session *auth.Session) *auth.Session {
	if session == nil {
		return nil
	}
	c := *session
	c.User.Metadata = copyMetadata(session.User.Metadata)
	return &c
}

func copyMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
