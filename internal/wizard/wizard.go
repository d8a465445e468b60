// Package wizard implements the guided strategy flow: scenario, then
// configuration, objectives, targets and plan. Each transition calls the
// backend through the stores, updates them in order and appends the next
// transcript entries.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"stratege/internal/configuration"
	"stratege/internal/logging"
	"stratege/internal/progress"
	"stratege/internal/scenario"
	"stratege/internal/transcript"
	"stratege/internal/types"
)

var (
	// ErrBusy is returned when a flow operation is already running.
	ErrBusy = errors.New("an operation is already in progress")
	// ErrNoScenario is returned when the flow needs a scenario and none was started.
	ErrNoScenario = errors.New("no scenario started")
	// ErrEmptySelection is returned when advancing without any selected item.
	ErrEmptySelection = errors.New("select at least one item first")
)

// Step is the position in the flow.
type Step int

const (
	Idle Step = iota
	ScenarioChosen
	ConfiguringSelection
	ObjectiveSelection
	TargetSelection
	PlanGenerated
)

func (s Step) String() string {
	switch s {
	case Idle:
		return "idle"
	case ScenarioChosen:
		return "scenario_chosen"
	case ConfiguringSelection:
		return "configuring_selection"
	case ObjectiveSelection:
		return "objective_selection"
	case TargetSelection:
		return "target_selection"
	case PlanGenerated:
		return "plan_generated"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// ChatBackend sends free-form chat turns.
type ChatBackend interface {
	Chat(ctx context.Context, req types.ChatRequest) (*types.ChatResponse, error)
}

// Deps are the collaborators of a Wizard. All fields are required except Log.
type Deps struct {
	Registry   *scenario.Registry
	Session    *configuration.Session
	Progress   *progress.Tracker
	Transcript *transcript.Transcript
	Chat       ChatBackend
	Log        *zap.Logger
}

// State is a snapshot of the flow.
type State struct {
	Step       Step
	ScenarioID int64
	Busy       bool
	Thinking   bool
	Err        string // last user-facing error, cleared when the next operation starts
	Actions    []types.ChatAction
}

// Wizard orchestrates the stores. Operations are serialised: while one runs,
// the others return ErrBusy.
type Wizard struct {
	registry   *scenario.Registry
	session    *configuration.Session
	progress   *progress.Tracker
	transcript *transcript.Transcript
	chat       ChatBackend
	log        *zap.Logger

	mu         sync.Mutex
	step       Step
	scenarioID int64
	busy       bool
	thinking   bool
	lastErr    string
	actions    []types.ChatAction
}

// New wires a wizard. Progress counts are derived from the session from
// here on.
func New(d Deps) *Wizard {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	d.Progress.Derive(d.Session)
	return &Wizard{
		registry:   d.Registry,
		session:    d.Session,
		progress:   d.Progress,
		transcript: d.Transcript,
		chat:       d.Chat,
		log:        log,
	}
}

// acquire takes the in-flight guard and clears the last error.
func (w *Wizard) acquire() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}
	w.busy = true
	w.lastErr = ""
	return nil
}

func (w *Wizard) release() {
	w.mu.Lock()
	w.busy = false
	w.mu.Unlock()
}

func (w *Wizard) setStep(s Step) {
	w.mu.Lock()
	prev := w.step
	w.step = s
	w.mu.Unlock()
	if prev != s {
		w.log.Info("transition", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
}

func (w *Wizard) setErr(err error) {
	w.mu.Lock()
	w.lastErr = err.Error()
	w.mu.Unlock()
}

// say appends an assistant text entry.
func (w *Wizard) say(text string) {
	e := transcript.Text(transcript.AuthorAssistant, text)
	w.mu.Lock()
	e.ScenarioID = w.scenarioID
	w.mu.Unlock()
	w.transcript.Append(e)
}

// show replaces any live instance of widget with a new one.
func (w *Wizard) show(widget transcript.Widget, payload any) {
	w.transcript.RemoveByID(string(widget))
	e := transcript.WidgetEntry(widget, payload)
	w.mu.Lock()
	e.ScenarioID = w.scenarioID
	w.mu.Unlock()
	w.transcript.Append(e)
}

// State returns a snapshot.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return State{
		Step:       w.step,
		ScenarioID: w.scenarioID,
		Busy:       w.busy,
		Thinking:   w.thinking,
		Err:        w.lastErr,
		Actions:    slices.Clone(w.actions),
	}
}

var staleOnStart = []transcript.Widget{
	transcript.WidgetObjectifFlow,
	transcript.WidgetCibleFlow,
	transcript.WidgetGeneratingPlan,
	transcript.WidgetPlanSummary,
}

// Start begins the flow for a scenario: progress back to step 0, the
// scenario's configurations loaded, and the configuration chooser shown.
// Loading failures leave an empty chooser.
func (w *Wizard) Start(ctx context.Context, scenarioID int64) error {
	if err := w.acquire(); err != nil {
		return err
	}
	defer w.release()

	w.progress.Reset()
	if err := w.progress.SetStep(progress.StepConfiguration); err != nil {
		return err
	}
	w.session.Reset()
	// Widgets of an earlier run are bound to the session that was just reset.
	for _, widget := range staleOnStart {
		w.transcript.RemoveByID(string(widget))
	}

	w.mu.Lock()
	w.scenarioID = scenarioID
	w.mu.Unlock()

	nom := ""
	if detail, err := w.registry.Select(ctx, scenarioID); err != nil {
		logging.NonFatal(w.log, "open scenario on start", err)
	} else {
		nom = detail.Nom
	}

	configs, err := w.session.LoadForScenario(ctx, scenarioID)
	if err != nil {
		logging.NonFatal(w.log, "load configurations on start", err)
	}

	w.say(startMessage(nom))
	w.show(transcript.WidgetConfigSelection, configs)
	w.setStep(ConfiguringSelection)
	return nil
}

// UseConfiguration opens an existing configuration and moves to objective
// selection. On failure the chooser stays and an assistant message explains
// why.
func (w *Wizard) UseConfiguration(ctx context.Context, configID int64) error {
	if err := w.acquire(); err != nil {
		return err
	}
	defer w.release()
	return w.configurationReady(ctx, configID)
}

// CreateConfiguration creates a configuration for the started scenario and
// opens it.
func (w *Wizard) CreateConfiguration(ctx context.Context, nom string) error {
	if err := w.acquire(); err != nil {
		return err
	}
	defer w.release()

	w.mu.Lock()
	scenarioID := w.scenarioID
	w.mu.Unlock()
	if scenarioID == 0 {
		w.setErr(ErrNoScenario)
		return ErrNoScenario
	}

	cfg, err := w.session.Create(ctx, scenarioID, nom)
	if err != nil {
		w.setErr(err)
		w.say(fmt.Sprintf(msgCreateFailed, err))
		return err
	}
	return w.configurationReady(ctx, cfg.ID)
}

func (w *Wizard) configurationReady(ctx context.Context, configID int64) error {
	if _, err := w.session.Select(ctx, configID); err != nil {
		w.log.Error("configuration ready failed", zap.Int64("config_id", configID), zap.Error(err))
		w.setErr(err)
		w.say(fmt.Sprintf(msgConfigFailed, err))
		return err
	}

	w.progress.SetConfigCompleted(true)
	if err := w.progress.SetStep(progress.StepObjectifs); err != nil {
		return err
	}

	w.transcript.Reset()
	w.say(fmt.Sprintf(msgConfigReady, types.MaxObjectifs))
	w.show(transcript.WidgetObjectifFlow, nil)
	w.setStep(ObjectiveSelection)
	return nil
}

// NextToCibles persists the selected objectives that are still unsaved
// suggestions, one at a time, then moves to target selection. The first
// failure stops the loop; what was saved before it stays saved.
func (w *Wizard) NextToCibles(ctx context.Context) error {
	if err := w.acquire(); err != nil {
		return err
	}
	defer w.release()

	selected := w.session.State().SelectedObjectifs
	if len(selected) == 0 {
		w.setErr(ErrEmptySelection)
		return ErrEmptySelection
	}

	for _, o := range selected {
		if o.Saved() {
			continue
		}
		if _, err := w.session.CreateAndAddObjectif(ctx, types.Objectif{Label: o.Label, Description: o.Description}); err != nil {
			w.log.Warn("persist objectif failed", zap.String("label", o.Label), zap.Error(err))
			w.setErr(err)
			w.say(fmt.Sprintf(msgPersistFailed, "objectifs", err))
			return err
		}
	}

	if err := w.progress.SetStep(progress.StepCibles); err != nil {
		return err
	}
	w.transcript.Reset()
	w.say(fmt.Sprintf(msgNextToCibles, types.MaxCibles))
	w.show(transcript.WidgetCibleFlow, nil)
	w.setStep(TargetSelection)
	return nil
}

// GeneratePlan persists unsaved target suggestions, then generates the plan.
// A "generating" widget is shown for the duration of the call. On success the
// transcript is cleared and the plan summary shown; on failure the error is
// appended verbatim and the flow stays on targets.
func (w *Wizard) GeneratePlan(ctx context.Context) error {
	if err := w.acquire(); err != nil {
		return err
	}
	defer w.release()

	selected := w.session.State().SelectedCibles
	if len(selected) == 0 {
		w.setErr(ErrEmptySelection)
		return ErrEmptySelection
	}

	for _, c := range selected {
		if c.Saved() {
			continue
		}
		data := types.Cible{Label: c.Label, Persona: c.Persona, Segment: c.Segment, Maturite: c.Maturite}
		if _, err := w.session.CreateAndAddCible(ctx, data); err != nil {
			w.log.Warn("persist cible failed", zap.String("label", c.Label), zap.Error(err))
			w.setErr(err)
			w.say(fmt.Sprintf(msgPersistFailed, "cibles", err))
			return err
		}
	}

	w.show(transcript.WidgetGeneratingPlan, nil)

	plan, err := w.session.GeneratePlan(ctx)
	if err != nil {
		w.transcript.RemoveByID(string(transcript.WidgetGeneratingPlan))
		w.setErr(err)
		w.say(fmt.Sprintf(msgPlanFailed, err))
		return err
	}

	w.progress.SetPlanGenerated(true)
	w.transcript.Reset()
	w.say(fmt.Sprintf(msgPlanReady, len(plan.Articles)))
	w.show(transcript.WidgetPlanSummary, plan)
	w.setStep(PlanGenerated)

	// The scenario becomes ready on the backend; mirror it.
	w.mu.Lock()
	scenarioID := w.scenarioID
	w.mu.Unlock()
	if scenarioID != 0 {
		if _, err := w.registry.Select(ctx, scenarioID); err != nil {
			logging.NonFatal(w.log, "refresh scenario after plan", err)
		}
		if _, err := w.registry.List(ctx); err != nil {
			logging.NonFatal(w.log, "refresh scenario list after plan", err)
		}
	}
	return nil
}

// NewStrategy abandons the current flow: progress, transcript and session
// are reset and no scenario stays selected.
func (w *Wizard) NewStrategy() error {
	if err := w.acquire(); err != nil {
		return err
	}
	defer w.release()

	w.progress.Reset()
	w.transcript.Reset()
	w.session.Reset()
	w.registry.ClearSelection()

	w.mu.Lock()
	w.scenarioID = 0
	w.actions = nil
	w.mu.Unlock()
	w.setStep(Idle)
	return nil
}
