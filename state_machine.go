package auth

import (
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const textCodeInvalidReadinessTransition = "INVALID_READINESS_TRANSITION"

// ErrInvalidReadinessTransition is returned when a readiness change is not
// allowed, including any attempt to leave Ready.
var ErrInvalidReadinessTransition = goerrors.New("invalid readiness transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidReadinessTransition).
	WithCode(goerrors.CodeBadRequest)

// ReadinessReason explains why the service became ready.
type ReadinessReason string

const (
	ReadinessReasonReconciled   ReadinessReason = "reconciled"
	ReadinessReasonTimeout      ReadinessReason = "timeout"
	ReadinessReasonUnconfigured ReadinessReason = "unconfigured"
	ReadinessReasonUnreachable  ReadinessReason = "unreachable"
)

// ReadinessTransition describes an applied readiness change.
type ReadinessTransition struct {
	From    Readiness
	To      Readiness
	Reason  ReadinessReason
	At      time.Time
	Elapsed time.Duration
}

type readinessMachine struct {
	mu          sync.Mutex
	current     Readiness
	transitions map[Readiness]map[Readiness]struct{}
	now         func() time.Time
	startedAt   time.Time
	done        chan struct{}
}

func newReadinessMachine(now func() time.Time) *readinessMachine {
	if now == nil {
		now = time.Now
	}
	return &readinessMachine{
		current: ReadinessResolving,
		transitions: map[Readiness]map[Readiness]struct{}{
			ReadinessResolving: {
				ReadinessReady: {},
			},
		},
		now:       now,
		startedAt: now(),
		done:      make(chan struct{}),
	}
}

func (m *readinessMachine) Current() Readiness {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Done is closed once the machine reaches Ready.
func (m *readinessMachine) Done() <-chan struct{} {
	return m.done
}

func (m *readinessMachine) Transition(target Readiness, reason ReadinessReason) (ReadinessTransition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.current
	if !m.canTransition(from, target) {
		return ReadinessTransition{}, ErrInvalidReadinessTransition
	}

	at := m.now()
	m.current = target
	if target == ReadinessReady {
		close(m.done)
	}

	return ReadinessTransition{
		From:    from,
		To:      target,
		Reason:  reason,
		At:      at,
		Elapsed: at.Sub(m.startedAt),
	}, nil
}

func (m *readinessMachine) canTransition(from, to Readiness) bool {
	if allowed, ok := m.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}
