// Package progress tracks which wizard stage is active for the step
// indicator: configuration, objectives, targets, plan.
package progress

import (
	"fmt"
	"sync"
)

// Steps of the wizard.
const (
	StepConfiguration = 0
	StepObjectifs     = 1
	StepCibles        = 2
	StepPlan          = 3
)

// StepLabels are the indicator captions, indexed by step.
var StepLabels = [...]string{"Configuration", "Objectifs", "Cibles", "Plan"}

// State is a snapshot of the tracker.
type State struct {
	CurrentStep     int
	ConfigCompleted bool
	ObjectifsCount  int
	CiblesCount     int
	PlanGenerated   bool
}

// CountsSource provides live selection counts.
type CountsSource interface {
	ObjectifsCount() int
	CiblesCount() int
}

// Tracker holds progress state. The zero value is not usable; call New.
type Tracker struct {
	mu    sync.RWMutex
	state State
	src   CountsSource
}

// New returns a tracker at step 0.
func New() *Tracker {
	return &Tracker{}
}

// Derive makes State compute the counts from src on every read. The stored
// counts set through SetObjectifsCount and SetCiblesCount are then ignored.
// Pass nil to go back to stored counts.
func (t *Tracker) Derive(src CountsSource) {
	t.mu.Lock()
	t.src = src
	t.mu.Unlock()
}

// SetStep jumps to step n.
func (t *Tracker) SetStep(n int) error {
	if n < StepConfiguration || n > StepPlan {
		return fmt.Errorf("step %d out of range [%d, %d]", n, StepConfiguration, StepPlan)
	}
	t.mu.Lock()
	t.state.CurrentStep = n
	t.mu.Unlock()
	return nil
}

// SetConfigCompleted records configuration completion. Completing moves the
// step to at least 1 and never moves it back.
func (t *Tracker) SetConfigCompleted(done bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.ConfigCompleted = done
	if done && t.state.CurrentStep < StepObjectifs {
		t.state.CurrentStep = StepObjectifs
	}
}

// SetObjectifsCount stores the objective count.
func (t *Tracker) SetObjectifsCount(n int) {
	t.mu.Lock()
	t.state.ObjectifsCount = n
	t.mu.Unlock()
}

// SetCiblesCount stores the target count.
func (t *Tracker) SetCiblesCount(n int) {
	t.mu.Lock()
	t.state.CiblesCount = n
	t.mu.Unlock()
}

// SetPlanGenerated records plan generation. True forces step 3.
func (t *Tracker) SetPlanGenerated(done bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.PlanGenerated = done
	if done {
		t.state.CurrentStep = StepPlan
	}
}

// Reset restores step 0 with every flag cleared. The derived source, if any,
// stays attached.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.state = State{}
	t.mu.Unlock()
}

// State returns a snapshot.
func (t *Tracker) State() State {
	t.mu.RLock()
	s, src := t.state, t.src
	t.mu.RUnlock()

	if src != nil {
		s.ObjectifsCount = src.ObjectifsCount()
		s.CiblesCount = src.CiblesCount()
	}
	return s
}

// Completed reports whether step n is behind the current step or, for the
// plan step, whether the plan exists.
func (s State) Completed(n int) bool {
	switch n {
	case StepConfiguration:
		return s.ConfigCompleted
	case StepPlan:
		return s.PlanGenerated
	default:
		return s.CurrentStep > n
	}
}
