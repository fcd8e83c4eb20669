package core

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidPhaseTransition = errors.New("core: invalid process phase transition")

type Phase string

const (
	PhaseCreated            Phase = "created"
	PhaseFetching           Phase = "fetching"
	PhaseComputing          Phase = "computing"
	PhaseWritingBack        Phase = "writing_back"
	PhaseCompleted          Phase = "completed"
	PhasePartiallyCompleted Phase = "partially_completed"
	PhaseFailed             Phase = "failed"
)

func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhasePartiallyCompleted || p == PhaseFailed
}

type PhaseChange struct {
	From Phase
	To   Phase
	At   time.Time
}

// Lifecycle tracks one provider run. It is created per run and not shared.
type Lifecycle struct {
	ProcessID int
	Phase     Phase
	History   []PhaseChange
	now       func() time.Time
}

func NewLifecycle(processID int, now func() time.Time) *Lifecycle {
	if now == nil {
		now = time.Now
	}
	return &Lifecycle{ProcessID: processID, Phase: PhaseCreated, now: now}
}

func (l *Lifecycle) TransitionTo(next Phase) error {
	if l == nil {
		return nil
	}
	if l.Phase == next {
		return nil
	}
	if !phaseTransitionAllowed(l.Phase, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidPhaseTransition, l.Phase, next)
	}
	l.History = append(l.History, PhaseChange{From: l.Phase, To: next, At: l.now().UTC()})
	l.Phase = next
	return nil
}

// Fail moves any non-terminal run to PhaseFailed.
func (l *Lifecycle) Fail() {
	if l == nil || l.Phase.Terminal() {
		return
	}
	_ = l.TransitionTo(PhaseFailed)
}

func phaseTransitionAllowed(current, next Phase) bool {
	allowed := map[Phase]map[Phase]struct{}{
		PhaseCreated: {
			PhaseFetching: {},
			PhaseFailed:   {},
		},
		PhaseFetching: {
			PhaseComputing: {},
			PhaseFailed:    {},
		},
		PhaseComputing: {
			PhaseWritingBack: {},
			PhaseFailed:      {},
		},
		PhaseWritingBack: {
			PhaseCompleted:          {},
			PhasePartiallyCompleted: {},
			PhaseFailed:             {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}
