// Package scenario holds the scenario list and the currently open scenario.
package scenario

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"stratege/internal/api"
	"stratege/internal/logging"
	"stratege/internal/types"
)

// Backend is the subset of the API client the registry uses.
type Backend interface {
	ListScenarios(ctx context.Context) ([]types.ScenarioSummary, error)
	GetScenario(ctx context.Context, id int64) (*types.ScenarioDetail, error)
	CreateScenario(ctx context.Context, in types.ScenarioInput) (*types.ScenarioSummary, error)
	DeleteScenario(ctx context.Context, id int64) (string, error)
	SuggestScenarios(ctx context.Context) ([]types.ScenarioSuggestion, error)
	BatchCreateScenarios(ctx context.Context, in []types.ScenarioSuggestion) (*types.BatchCreateResult, error)
	ExportScenario(ctx context.Context, id int64, format api.ExportFormat) ([]byte, error)
}

// State is a snapshot of the registry.
type State struct {
	Scenarios []types.ScenarioSummary
	Selected  *types.ScenarioDetail
	Loading   bool
	Err       string // last error message, cleared when the next call starts
}

// Registry is safe for concurrent use. Network calls run without the lock.
type Registry struct {
	backend Backend
	log     *zap.Logger

	mu        sync.RWMutex
	scenarios []types.ScenarioSummary
	selected  *types.ScenarioDetail
	inflight  int
	lastErr   string
}

// New creates an empty registry.
func New(backend Backend, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{backend: backend, log: log}
}

// begin marks an operation as started: loading on, last error cleared.
func (r *Registry) begin() {
	r.mu.Lock()
	r.inflight++
	r.lastErr = ""
	r.mu.Unlock()
}

// end marks an operation as finished and records err, if any.
func (r *Registry) end(err error) {
	r.mu.Lock()
	r.inflight--
	if err != nil {
		r.lastErr = err.Error()
	}
	r.mu.Unlock()
}

// List fetches the scenario summaries and caches them.
func (r *Registry) List(ctx context.Context) ([]types.ScenarioSummary, error) {
	r.begin()
	list, err := r.backend.ListScenarios(ctx)
	if err == nil {
		r.mu.Lock()
		r.scenarios = list
		r.mu.Unlock()
	} else {
		r.log.Warn("list scenarios failed", zap.Error(err))
	}
	r.end(err)
	if err != nil {
		return nil, err
	}
	return slices.Clone(list), nil
}

// Select fetches the full detail of a scenario and makes it current.
func (r *Registry) Select(ctx context.Context, id int64) (*types.ScenarioDetail, error) {
	r.begin()
	detail, err := r.backend.GetScenario(ctx, id)
	if err == nil {
		r.mu.Lock()
		r.selected = detail
		r.mu.Unlock()
		r.log.Debug("scenario selected", zap.Int64("scenario_id", id))
	} else {
		r.log.Warn("select scenario failed", zap.Int64("scenario_id", id), zap.Error(err))
	}
	r.end(err)
	if err != nil {
		return nil, err
	}
	return detail.Clone(), nil
}

// Create persists a new scenario, refreshes the list and selects it. On
// failure the previous list and selection are untouched.
func (r *Registry) Create(ctx context.Context, in types.ScenarioInput) (*types.ScenarioDetail, error) {
	r.begin()
	if err := in.Validate(); err != nil {
		r.end(err)
		return nil, err
	}

	created, err := r.backend.CreateScenario(ctx, in)
	if err != nil {
		r.log.Warn("create scenario failed", zap.Error(err))
		r.end(err)
		return nil, err
	}
	r.log.Info("scenario created", zap.Int64("scenario_id", created.ID), zap.String("nom", created.Nom))
	r.end(nil)

	if _, err := r.List(ctx); err != nil {
		logging.NonFatal(r.log, "refresh scenarios after create", err)
	}
	detail, err := r.Select(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("scenario %d created but could not be opened: %w", created.ID, err)
	}
	return detail, nil
}

// ClearSelection detaches the current scenario. Nothing is deleted.
func (r *Registry) ClearSelection() {
	r.mu.Lock()
	r.selected = nil
	r.mu.Unlock()
}

// SetSelected replaces the current detail with one obtained elsewhere, such
// as a chat reply.
func (r *Registry) SetSelected(detail *types.ScenarioDetail) {
	r.mu.Lock()
	r.selected = detail.Clone()
	r.mu.Unlock()
}

// Delete removes a scenario on the backend and refreshes the list. The
// selection is cleared when it was the deleted scenario.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	r.begin()
	_, err := r.backend.DeleteScenario(ctx, id)
	if err != nil {
		r.log.Warn("delete scenario failed", zap.Int64("scenario_id", id), zap.Error(err))
		r.end(err)
		return err
	}
	r.mu.Lock()
	if r.selected != nil && r.selected.ID == id {
		r.selected = nil
	}
	r.scenarios = slices.DeleteFunc(slices.Clone(r.scenarios), func(s types.ScenarioSummary) bool { return s.ID == id })
	r.mu.Unlock()
	r.end(nil)

	if _, err := r.List(ctx); err != nil {
		logging.NonFatal(r.log, "refresh scenarios after delete", err)
	}
	return nil
}

// SuggestNew asks the backend for scenario ideas.
func (r *Registry) SuggestNew(ctx context.Context) ([]types.ScenarioSuggestion, error) {
	r.begin()
	out, err := r.backend.SuggestScenarios(ctx)
	r.end(err)
	return out, err
}

// BatchCreate creates several scenarios and refreshes the list.
func (r *Registry) BatchCreate(ctx context.Context, in []types.ScenarioSuggestion) (*types.BatchCreateResult, error) {
	if len(in) == 0 {
		return &types.BatchCreateResult{}, nil
	}
	r.begin()
	res, err := r.backend.BatchCreateScenarios(ctx, in)
	r.end(err)
	if err != nil {
		return nil, err
	}
	if _, err := r.List(ctx); err != nil {
		logging.NonFatal(r.log, "refresh scenarios after batch create", err)
	}
	return res, nil
}

// Export downloads a scenario export.
func (r *Registry) Export(ctx context.Context, id int64, format api.ExportFormat) ([]byte, error) {
	r.begin()
	data, err := r.backend.ExportScenario(ctx, id, format)
	r.end(err)
	return data, err
}

// Selected returns a copy of the current detail, or nil.
func (r *Registry) Selected() *types.ScenarioDetail {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selected.Clone()
}

// State returns a snapshot.
func (r *Registry) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return State{
		Scenarios: slices.Clone(r.scenarios),
		Selected:  r.selected.Clone(),
		Loading:   r.inflight > 0,
		Err:       r.lastErr,
	}
}
