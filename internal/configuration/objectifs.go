package configuration

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"stratege/internal/logging"
	"stratege/internal/types"
)

// LoadAllObjectifs fetches the global objective catalog.
func (s *Session) LoadAllObjectifs(ctx context.Context) ([]types.Objectif, error) {
	list, err := s.backend.ListObjectifs(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.st.AllObjectifs = list
	s.mu.Unlock()
	return slices.Clone(list), nil
}

// SuggestObjectifs asks for AI objectives for the current configuration.
// The previous suggestions are replaced, never merged.
func (s *Session) SuggestObjectifs(ctx context.Context) ([]types.Objectif, error) {
	configID, gen, err := s.current()
	if err != nil {
		return nil, err
	}
	s.begin()
	list, err := s.backend.SuggestObjectifs(ctx, configID)
	s.end()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.gen == gen {
		s.st.SuggestedObjectifs = list
	}
	s.mu.Unlock()
	return slices.Clone(list), nil
}

// AddObjectif links o to the current configuration and appends it to the
// selection once the backend accepted it. The cap is checked first, without
// any network call. Adding a label that is already selected re-links it and
// replaces the local copy in place, which is how an unsaved suggestion gets
// its persisted id.
func (s *Session) AddObjectif(ctx context.Context, o types.Objectif) error {
	if o.Label == "" {
		return fmt.Errorf("label est requis")
	}

	s.mu.Lock()
	configID, gen := s.st.ConfigID, s.gen
	if configID == 0 {
		s.mu.Unlock()
		return ErrNoConfiguration
	}
	existing := indexByLabel(s.st.SelectedObjectifs, o.Label, objectifLabel) >= 0
	if !existing {
		if len(s.st.SelectedObjectifs)+s.pendingObjectifs >= types.MaxObjectifs {
			s.mu.Unlock()
			return &CapacityError{Kind: "objectifs", Max: types.MaxObjectifs}
		}
		s.pendingObjectifs++
	}
	s.inflight++
	s.mu.Unlock()

	_, err := s.backend.AddObjectif(ctx, configID, o)

	s.mu.Lock()
	s.inflight--
	if s.gen != gen {
		s.mu.Unlock()
		if err != nil {
			return err
		}
		s.log.Debug("dropping objectif add for a configuration no longer current", zap.Int64("config_id", configID))
		return nil
	}
	if !existing {
		s.pendingObjectifs--
	}
	if err != nil {
		s.mu.Unlock()
		s.log.Warn("add objectif failed", zap.String("label", o.Label), zap.Error(err))
		return err
	}
	sel := slices.Clone(s.st.SelectedObjectifs)
	if i := indexByLabel(sel, o.Label, objectifLabel); i >= 0 {
		if o.ID == 0 {
			o.ID = sel[i].ID
		}
		sel[i] = o
	} else {
		sel = append(sel, o)
	}
	s.st.SelectedObjectifs = sel
	s.mu.Unlock()

	s.log.Debug("objectif added", zap.Int64("config_id", configID), zap.String("label", o.Label), zap.Int64("objectif_id", o.ID))
	s.recheck(ctx, "add objectif")
	return nil
}

// RemoveObjectif unlinks the objective and drops it from the selection.
func (s *Session) RemoveObjectif(ctx context.Context, objectifID int64) error {
	return s.removeObjectif(ctx, objectifID, "")
}

// DeselectObjectif removes a selected objective, resolving an id first when
// the entry is an unsaved suggestion.
func (s *Session) DeselectObjectif(ctx context.Context, o types.Objectif) error {
	if o.Saved() {
		return s.removeObjectif(ctx, o.ID, o.Label)
	}
	created, err := s.backend.CreateObjectif(ctx, o)
	if err != nil {
		return fmt.Errorf("resolve objectif %q: %w", o.Label, err)
	}
	return s.removeObjectif(ctx, created.ID, o.Label)
}

func (s *Session) removeObjectif(ctx context.Context, objectifID int64, label string) error {
	configID, gen, err := s.current()
	if err != nil {
		return err
	}
	s.begin()
	err = s.backend.RemoveObjectif(ctx, configID, objectifID)
	s.end()
	if err != nil {
		s.log.Warn("remove objectif failed", zap.Int64("objectif_id", objectifID), zap.Error(err))
		return err
	}

	s.mu.Lock()
	if s.gen == gen {
		s.st.SelectedObjectifs = slices.DeleteFunc(slices.Clone(s.st.SelectedObjectifs), func(v types.Objectif) bool {
			return v.ID == objectifID || (label != "" && v.Label == label)
		})
	}
	s.mu.Unlock()

	s.recheck(ctx, "remove objectif")
	return nil
}

// CreateAndAddObjectif creates the objective in the global catalog, adds it
// to the configuration and refreshes the catalog. If creation fails nothing
// else runs. A failing catalog refresh is only logged.
func (s *Session) CreateAndAddObjectif(ctx context.Context, data types.Objectif) (*types.Objectif, error) {
	if _, _, err := s.current(); err != nil {
		return nil, err
	}
	created, err := s.backend.CreateObjectif(ctx, data)
	if err != nil {
		return nil, err
	}
	if err := s.AddObjectif(ctx, *created); err != nil {
		return nil, err
	}
	if _, err := s.LoadAllObjectifs(ctx); err != nil {
		logging.NonFatal(s.log, "refresh objectif catalog", err)
	}
	return created, nil
}
