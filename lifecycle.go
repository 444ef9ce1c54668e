package auth

import (
	"context"
	"sync"
	"time"
)

// Option customizes a LifecycleService.
type Option func(*LifecycleService)

// WithConfig sets the lifecycle options.
func WithConfig(cfg Config) Option {
	return func(s *LifecycleService) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger Logger) Option {
	return func(s *LifecycleService) {
		s.provider, s.logger = ResolveLogger("garage.lifecycle", s.provider, logger)
	}
}

// WithLoggerProvider resolves the logger from a provider.
func WithLoggerProvider(provider LoggerProvider) Option {
	return func(s *LifecycleService) {
		s.provider, s.logger = ResolveLogger("garage.lifecycle", provider, nil)
	}
}

// WithActivitySink sets the ActivitySink used to publish lifecycle events.
func WithActivitySink(sink ActivitySink) Option {
	return func(s *LifecycleService) {
		s.sink = normalizeActivitySink(sink)
	}
}

// WithNotifier sets the receiver of user facing notices.
func WithNotifier(notifier Notifier) Option {
	return func(s *LifecycleService) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(s *LifecycleService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// LifecycleService owns the CurrentUser and ReadinessState of a process and
// keeps them consistent with the SessionStore and ProfileRepository.
//
// Views read State snapshots through Snapshot and Subscribe, and receive
// navigation signals through OnNavigate. They never mutate state directly.
type LifecycleService struct {
	store    SessionStore
	profiles ProfileRepository
	config   Config
	logger   Logger
	provider LoggerProvider
	sink     ActivitySink
	notifier Notifier
	now      func() time.Time

	machine *readinessMachine

	mu               sync.RWMutex
	user             *CurrentUser
	loading          int
	started          bool
	closed           bool
	listenerAttached bool
	subscription     Subscription
	timer            *time.Timer
	baseCtx          context.Context
	baseCancel       context.CancelFunc
	passSeq          uint64
	passCancel       context.CancelFunc
	passTrigger      passTrigger
	lastDestination  Destination

	listenersMu    sync.Mutex
	nextListenerID int
	stateListeners map[int]func(State)
	navListeners   map[int]func(NavigationSignal)
}

// NewLifecycleService builds a service. Either collaborator may be nil, in
// which case the service reports itself as not configured.
func NewLifecycleService(store SessionStore, profiles ProfileRepository, opts ...Option) *LifecycleService {
	s := &LifecycleService{
		store:          store,
		profiles:       profiles,
		config:         DefaultConfig(),
		logger:         defLogger{},
		sink:           noopActivitySink{},
		notifier:       noopNotifier{},
		now:            time.Now,
		stateListeners: map[int]func(State){},
		navListeners:   map[int]func(NavigationSignal){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.machine = newReadinessMachine(s.now)
	s.baseCtx, s.baseCancel = context.WithCancel(context.Background())
	return s
}

// Configured reports whether both remote collaborators are present.
func (s *LifecycleService) Configured() bool {
	return s.store != nil && s.profiles != nil
}

// Start attaches the session listener, arms the readiness timer and runs the
// first reconciliation pass in the background. It never fails: problems
// with the collaborators move the service to Ready with no user.
func (s *LifecycleService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if !s.Configured() {
		s.logger.Warn("session store or profile repository not configured, continuing signed out")
		s.markReady(ReadinessReasonUnconfigured)
		s.publish()
		return nil
	}

	timeout := s.config.GetReadinessTimeout()
	s.mu.Lock()
	s.timer = time.AfterFunc(timeout, s.onReadinessTimeout)
	s.mu.Unlock()

	sub, err := s.store.OnSessionChange(s.handleSessionChange)
	if err != nil {
		s.logger.Warn("unable to attach session listener, continuing signed out", "error", err)
		s.markReady(ReadinessReasonUnreachable)
		s.publish()
		return nil
	}

	s.mu.Lock()
	s.subscription = sub
	s.listenerAttached = true
	s.mu.Unlock()

	s.logger.Debug("session listener attached", "readiness_timeout", timeout)
	s.spawnPass(ctx, passTrigger{event: SessionEventInitial, fetch: true})
	return nil
}

// Close releases the session subscription, stops the readiness timer and
// cancels in-flight reconciliation passes.
func (s *LifecycleService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.passCancel != nil {
		s.passCancel()
	}
	sub := s.subscription
	s.subscription = nil
	s.listenerAttached = false
	s.mu.Unlock()

	s.baseCancel()
	if sub != nil {
		sub.Unsubscribe()
	}
	return nil
}

// ListenerAttached reports whether the session change subscription is live.
func (s *LifecycleService) ListenerAttached() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listenerAttached
}

// Snapshot returns a copy of the current state.
func (s *LifecycleService) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *LifecycleService) snapshotLocked() State {
	return State{
		Readiness: s.machine.Current(),
		User:      s.user.clone(),
		Loading:   s.loading > 0,
	}
}

// CurrentUser returns a copy of the current user, or nil.
func (s *LifecycleService) CurrentUser() *CurrentUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.clone()
}

// Ready is closed once the service reaches Ready.
func (s *LifecycleService) Ready() <-chan struct{} {
	return s.machine.Done()
}

// WaitReady blocks until the service is ready or ctx is done.
func (s *LifecycleService) WaitReady(ctx context.Context) (State, error) {
	select {
	case <-s.machine.Done():
		return s.Snapshot(), nil
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// Subscribe registers fn for state changes. fn is called right away with
// the current snapshot. The returned func removes the listener.
func (s *LifecycleService) Subscribe(fn func(State)) func() {
	if fn == nil {
		return func() {}
	}
	s.listenersMu.Lock()
	id := s.nextListenerID
	s.nextListenerID++
	s.stateListeners[id] = fn
	s.listenersMu.Unlock()

	fn(s.Snapshot())

	return func() {
		s.listenersMu.Lock()
		delete(s.stateListeners, id)
		s.listenersMu.Unlock()
	}
}

// OnNavigate registers fn for navigation signals. The returned func removes
// the listener.
func (s *LifecycleService) OnNavigate(fn func(NavigationSignal)) func() {
	if fn == nil {
		return func() {}
	}
	s.listenersMu.Lock()
	id := s.nextListenerID
	s.nextListenerID++
	s.navListeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.navListeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *LifecycleService) publish() {
	state := s.Snapshot()

	s.listenersMu.Lock()
	listeners := make([]func(State), 0, len(s.stateListeners))
	for _, fn := range s.stateListeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}

func (s *LifecycleService) emitNavigation(signal NavigationSignal) {
	s.logger.Debug("navigation", "destination", signal.Destination, "path", signal.Path, "reason", signal.Reason)

	s.listenersMu.Lock()
	listeners := make([]func(NavigationSignal), 0, len(s.navListeners))
	for _, fn := range s.navListeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(signal)
	}
}

// claimDestinationLocked records dest as the current landing area and
// reports whether views must be told to move there. Callers hold s.mu.
func (s *LifecycleService) claimDestinationLocked(dest Destination) bool {
	if s.closed || s.lastDestination == dest {
		return false
	}
	s.lastDestination = dest
	return true
}

func (s *LifecycleService) signalFor(dest Destination, reason string) NavigationSignal {
	path := s.config.GetPublicLanding()
	if dest == DestinationAuthenticated {
		path = s.config.GetAuthenticatedLanding()
	}
	return NavigationSignal{Destination: dest, Path: path, Reason: reason}
}

func (s *LifecycleService) navigate(dest Destination, reason string) {
	s.mu.Lock()
	claimed := s.claimDestinationLocked(dest)
	s.mu.Unlock()
	if claimed {
		s.emitNavigation(s.signalFor(dest, reason))
	}
}

// scheduleNavigation navigates after the configured delay unless the views
// already moved to dest in the meantime.
func (s *LifecycleService) scheduleNavigation(dest Destination, reason string) {
	time.AfterFunc(s.config.GetNavigationDelay(), func() {
		s.navigate(dest, reason)
	})
}

func (s *LifecycleService) markReady(reason ReadinessReason) bool {
	tc, err := s.machine.Transition(ReadinessReady, reason)
	if err != nil {
		return false
	}

	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	signedIn := s.user != nil
	s.mu.Unlock()

	s.logger.Info("lifecycle ready", "reason", reason, "signed_in", signedIn, "elapsed", tc.Elapsed)
	s.recordActivity(s.baseCtx, ActivityEvent{
		EventType: ActivityEventLifecycleReady,
		Metadata: map[string]any{
			"reason":     string(reason),
			"signed_in":  signedIn,
			"elapsed_ms": tc.Elapsed.Milliseconds(),
		},
	})
	return true
}

func (s *LifecycleService) onReadinessTimeout() {
	if s.markReady(ReadinessReasonTimeout) {
		s.logger.Warn("readiness timeout elapsed before reconciliation completed")
		s.publish()
	}
}

func (s *LifecycleService) beginLoading() {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
	s.publish()
}

func (s *LifecycleService) endLoading() {
	s.mu.Lock()
	if s.loading > 0 {
		s.loading--
	}
	s.mu.Unlock()
	s.publish()
}

func (s *LifecycleService) notifyFailure(err error) {
	s.notifier.Notify(Notice{
		Level:    NoticeError,
		Message:  ErrorMessage(err),
		TextCode: textCode(err),
	})
}

func (s *LifecycleService) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sink := normalizeActivitySink(s.sink)
	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink error", "event", event.EventType, "error", err)
	}
}
