// Package configuration holds the active configuration of a scenario and
// its working selections of objectives (objectifs) and targets (cibles).
//
// The selected lists hold denormalized copies so they can be rendered without
// a refetch. They change only through the add and remove operations, and a
// local change happens only after the backend accepted it.
package configuration

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"stratege/internal/logging"
	"stratege/internal/types"
)

var (
	// ErrCapacity matches every *CapacityError.
	ErrCapacity = errors.New("selection capacity reached")
	// ErrNoConfiguration is returned by operations that need a current
	// configuration when none is selected.
	ErrNoConfiguration = errors.New("no configuration selected")
)

// CapacityError reports that a selection is full. It is raised before any
// network call.
type CapacityError struct {
	Kind string // "objectifs" or "cibles"
	Max  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("Maximum %d %s autorisés", e.Max, e.Kind)
}

// Is makes errors.Is(err, ErrCapacity) true.
func (e *CapacityError) Is(target error) bool { return target == ErrCapacity }

const slowPlanThreshold = 30 * time.Second

// Backend is the subset of the API client the session uses.
type Backend interface {
	ListConfigurations(ctx context.Context, scenarioID int64) ([]types.Configuration, error)
	CreateConfiguration(ctx context.Context, scenarioID int64, nom string) (*types.Configuration, error)
	GetConfiguration(ctx context.Context, id int64) (*types.ConfigurationDetail, error)
	DeleteConfiguration(ctx context.Context, id int64) error

	AddObjectif(ctx context.Context, configID int64, o types.Objectif) (*types.ConfigurationDetail, error)
	AddCible(ctx context.Context, configID int64, c types.Cible) (*types.ConfigurationDetail, error)
	RemoveObjectif(ctx context.Context, configID, objectifID int64) error
	RemoveCible(ctx context.Context, configID, cibleID int64) error

	SuggestObjectifs(ctx context.Context, configID int64) ([]types.Objectif, error)
	SuggestCibles(ctx context.Context, configID int64) ([]types.Cible, error)
	CanCreatePlan(ctx context.Context, configID int64) (bool, error)
	GeneratePlan(ctx context.Context, configID int64) (*types.GeneratedPlan, error)

	ListObjectifs(ctx context.Context) ([]types.Objectif, error)
	CreateObjectif(ctx context.Context, o types.Objectif) (*types.Objectif, error)
	ListCibles(ctx context.Context) ([]types.Cible, error)
	CreateCible(ctx context.Context, c types.Cible) (*types.Cible, error)
}

// State is a snapshot of the session. Slices and pointers are copies.
type State struct {
	ScenarioID     int64
	ConfigID       int64
	Configurations []types.Configuration
	Selected       *types.ConfigurationDetail

	AllObjectifs       []types.Objectif
	SuggestedObjectifs []types.Objectif
	SelectedObjectifs  []types.Objectif

	AllCibles       []types.Cible
	SuggestedCibles []types.Cible
	SelectedCibles  []types.Cible

	CanCreatePlan bool
	Loading       bool
	LastPlan      *types.GeneratedPlan
}

// Session is safe for concurrent use. Network calls run without the lock.
type Session struct {
	backend Backend
	log     *zap.Logger

	mu       sync.RWMutex
	st       State
	inflight int
	// gen changes on Reset and Select; results of calls started under an
	// older generation are discarded.
	gen int
	// reserved slots for adds in flight, so concurrent adds cannot exceed
	// the caps.
	pendingObjectifs int
	pendingCibles    int
}

// New creates an empty session.
func New(backend Backend, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{backend: backend, log: log}
}

func (s *Session) begin() {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
}

func (s *Session) end() {
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
}

// current returns the configuration id and generation, or ErrNoConfiguration.
func (s *Session) current() (int64, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.st.ConfigID == 0 {
		return 0, 0, ErrNoConfiguration
	}
	return s.st.ConfigID, s.gen, nil
}

// LoadForScenario replaces the configuration list with the scenario's
// configurations and records the scenario as current. On failure the list is
// emptied and the error returned.
func (s *Session) LoadForScenario(ctx context.Context, scenarioID int64) ([]types.Configuration, error) {
	s.begin()
	defer s.end()

	list, err := s.backend.ListConfigurations(ctx, scenarioID)

	s.mu.Lock()
	s.st.ScenarioID = scenarioID
	if err != nil {
		s.st.Configurations = nil
	} else {
		s.st.Configurations = list
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("load configurations failed", zap.Int64("scenario_id", scenarioID), zap.Error(err))
		return nil, err
	}
	return slices.Clone(list), nil
}

// Create persists a configuration, appends it to the list and makes it
// current with empty selections. The detail is not fetched; call Select for
// that.
func (s *Session) Create(ctx context.Context, scenarioID int64, nom string) (*types.Configuration, error) {
	if nom == "" {
		return nil, fmt.Errorf("nom est requis")
	}
	s.begin()
	defer s.end()

	cfg, err := s.backend.CreateConfiguration(ctx, scenarioID, nom)
	if err != nil {
		s.log.Warn("create configuration failed", zap.Int64("scenario_id", scenarioID), zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	s.st.ScenarioID = scenarioID
	s.st.Configurations = append(slices.Clone(s.st.Configurations), *cfg)
	s.switchTo(cfg.ID)
	s.mu.Unlock()

	s.log.Info("configuration created", zap.Int64("config_id", cfg.ID), zap.String("nom", cfg.Nom))
	out := *cfg
	return &out, nil
}

// Select fetches a configuration, makes it current, seeds the selections
// from it and refreshes plan eligibility.
func (s *Session) Select(ctx context.Context, configID int64) (*types.ConfigurationDetail, error) {
	s.begin()
	detail, err := s.backend.GetConfiguration(ctx, configID)
	if err != nil {
		s.end()
		s.log.Warn("select configuration failed", zap.Int64("config_id", configID), zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	s.gen++
	s.pendingObjectifs, s.pendingCibles = 0, 0
	s.st.ConfigID = configID
	if s.st.ScenarioID == 0 {
		s.st.ScenarioID = detail.ScenarioID
	}
	s.st.Selected = detail.Clone()
	s.st.SelectedObjectifs = slices.Clone(detail.Objectifs)
	s.st.SelectedCibles = slices.Clone(detail.Cibles)
	s.st.CanCreatePlan = false
	s.mu.Unlock()
	s.end()

	s.log.Debug("configuration selected",
		zap.Int64("config_id", configID),
		zap.Int("objectifs", len(detail.Objectifs)),
		zap.Int("cibles", len(detail.Cibles)))

	if _, err := s.CheckCanCreatePlan(ctx); err != nil {
		logging.NonFatal(s.log, "check can-create-plan after select", err)
	}
	return detail.Clone(), nil
}

// DeleteConfiguration deletes a configuration. When it is the current one
// the session is reset to the scenario level.
func (s *Session) DeleteConfiguration(ctx context.Context, configID int64) error {
	s.begin()
	defer s.end()

	if err := s.backend.DeleteConfiguration(ctx, configID); err != nil {
		return err
	}

	s.mu.Lock()
	s.st.Configurations = slices.DeleteFunc(slices.Clone(s.st.Configurations), func(c types.Configuration) bool {
		return c.ID == configID
	})
	if s.st.ConfigID == configID {
		s.switchTo(0)
	}
	s.mu.Unlock()
	return nil
}

// switchTo makes configID current and drops everything that belonged to the
// previous configuration. Callers hold s.mu.
func (s *Session) switchTo(configID int64) {
	s.gen++
	s.pendingObjectifs, s.pendingCibles = 0, 0
	s.st.ConfigID = configID
	s.st.Selected = nil
	s.st.SelectedObjectifs = nil
	s.st.SelectedCibles = nil
	s.st.SuggestedObjectifs = nil
	s.st.SuggestedCibles = nil
	s.st.CanCreatePlan = false
	s.st.LastPlan = nil
}

// CheckCanCreatePlan asks the backend whether the current configuration is
// eligible for plan generation and caches the answer. It is never recomputed
// implicitly outside the mutating operations of this package.
func (s *Session) CheckCanCreatePlan(ctx context.Context) (bool, error) {
	configID, gen, err := s.current()
	if err != nil {
		return false, err
	}
	ok, err := s.backend.CanCreatePlan(ctx, configID)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	if s.gen == gen {
		s.st.CanCreatePlan = ok
	}
	s.mu.Unlock()
	return ok, nil
}

// recheck refreshes eligibility after a mutation; failures are non-fatal.
func (s *Session) recheck(ctx context.Context, op string) {
	if _, err := s.CheckCanCreatePlan(ctx); err != nil {
		logging.NonFatal(s.log, "check can-create-plan after "+op, err)
	}
}

// GeneratePlan asks the backend to generate a plan for the current
// configuration. Eligibility is not checked locally. The result is kept as
// the last plan and the configuration detail is refreshed.
func (s *Session) GeneratePlan(ctx context.Context) (*types.GeneratedPlan, error) {
	configID, gen, err := s.current()
	if err != nil {
		return nil, err
	}
	s.begin()
	timer := logging.StartTimer(s.log, "generate-plan")
	plan, err := s.backend.GeneratePlan(ctx, configID)
	timer.StopWithThreshold(slowPlanThreshold)
	s.end()
	if err != nil {
		s.log.Warn("generate plan failed", zap.Int64("config_id", configID), zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	if s.gen == gen {
		s.st.LastPlan = plan.Clone()
	}
	s.mu.Unlock()
	s.log.Info("plan generated", zap.Int64("config_id", configID), zap.Int64("plan_id", plan.PlanID), zap.Int("articles", len(plan.Articles)))

	if detail, err := s.backend.GetConfiguration(ctx, configID); err != nil {
		logging.NonFatal(s.log, "refresh configuration after plan", err)
	} else {
		s.mu.Lock()
		if s.gen == gen {
			s.st.Selected = detail
		}
		s.mu.Unlock()
	}
	return plan.Clone(), nil
}

// RecordPlan stores plan as the last generated plan.
func (s *Session) RecordPlan(plan *types.GeneratedPlan) {
	s.mu.Lock()
	s.st.LastPlan = plan.Clone()
	s.mu.Unlock()
}

// Reset clears the session to its initial empty state.
func (s *Session) Reset() {
	s.mu.Lock()
	s.gen++
	s.pendingObjectifs, s.pendingCibles = 0, 0
	s.st = State{}
	s.mu.Unlock()
}

// ObjectifsCount returns the number of selected objectives.
func (s *Session) ObjectifsCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.SelectedObjectifs)
}

// CiblesCount returns the number of selected targets.
func (s *Session) CiblesCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.SelectedCibles)
}

// ConfigID returns the current configuration id, or 0.
func (s *Session) ConfigID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ConfigID
}

// State returns a snapshot.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.st
	out.Configurations = slices.Clone(s.st.Configurations)
	out.Selected = s.st.Selected.Clone()
	out.AllObjectifs = slices.Clone(s.st.AllObjectifs)
	out.SuggestedObjectifs = slices.Clone(s.st.SuggestedObjectifs)
	out.SelectedObjectifs = slices.Clone(s.st.SelectedObjectifs)
	out.AllCibles = slices.Clone(s.st.AllCibles)
	out.SuggestedCibles = slices.Clone(s.st.SuggestedCibles)
	out.SelectedCibles = slices.Clone(s.st.SelectedCibles)
	out.LastPlan = s.st.LastPlan.Clone()
	out.Loading = s.inflight > 0
	return out
}

func indexByLabel[T any](items []T, label string, labelOf func(T) string) int {
	return slices.IndexFunc(items, func(v T) bool { return labelOf(v) == label })
}

func objectifLabel(o types.Objectif) string { return o.Label }
func cibleLabel(c types.Cible) string       { return c.Label }
