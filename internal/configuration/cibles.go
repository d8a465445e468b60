package configuration

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"stratege/internal/logging"
	"stratege/internal/types"
)

// LoadAllCibles fetches the global target catalog.
func (s *Session) LoadAllCibles(ctx context.Context) ([]types.Cible, error) {
	list, err := s.backend.ListCibles(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.st.AllCibles = list
	s.mu.Unlock()
	return slices.Clone(list), nil
}

// SuggestCibles asks for AI targets for the current configuration,
// replacing the previous suggestions.
func (s *Session) SuggestCibles(ctx context.Context) ([]types.Cible, error) {
	configID, gen, err := s.current()
	if err != nil {
		return nil, err
	}
	s.begin()
	list, err := s.backend.SuggestCibles(ctx, configID)
	s.end()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.gen == gen {
		s.st.SuggestedCibles = list
	}
	s.mu.Unlock()
	return slices.Clone(list), nil
}

// AddCible links c to the current configuration. Same policy as AddObjectif
// with a cap of three.
func (s *Session) AddCible(ctx context.Context, c types.Cible) error {
	if c.Label == "" {
		return fmt.Errorf("label est requis")
	}

	s.mu.Lock()
	configID, gen := s.st.ConfigID, s.gen
	if configID == 0 {
		s.mu.Unlock()
		return ErrNoConfiguration
	}
	existing := indexByLabel(s.st.SelectedCibles, c.Label, cibleLabel) >= 0
	if !existing {
		if len(s.st.SelectedCibles)+s.pendingCibles >= types.MaxCibles {
			s.mu.Unlock()
			return &CapacityError{Kind: "cibles", Max: types.MaxCibles}
		}
		s.pendingCibles++
	}
	s.inflight++
	s.mu.Unlock()

	_, err := s.backend.AddCible(ctx, configID, c)

	s.mu.Lock()
	s.inflight--
	if s.gen != gen {
		s.mu.Unlock()
		return err
	}
	if !existing {
		s.pendingCibles--
	}
	if err != nil {
		s.mu.Unlock()
		s.log.Warn("add cible failed", zap.String("label", c.Label), zap.Error(err))
		return err
	}
	sel := slices.Clone(s.st.SelectedCibles)
	if i := indexByLabel(sel, c.Label, cibleLabel); i >= 0 {
		if c.ID == 0 {
			c.ID = sel[i].ID
		}
		sel[i] = c
	} else {
		sel = append(sel, c)
	}
	s.st.SelectedCibles = sel
	s.mu.Unlock()

	s.log.Debug("cible added", zap.Int64("config_id", configID), zap.String("label", c.Label), zap.Int64("cible_id", c.ID))
	s.recheck(ctx, "add cible")
	return nil
}

// RemoveCible unlinks the target and drops it from the selection.
func (s *Session) RemoveCible(ctx context.Context, cibleID int64) error {
	return s.removeCible(ctx, cibleID, "")
}

// DeselectCible removes a selected target, resolving an id first for
// unsaved suggestions.
func (s *Session) DeselectCible(ctx context.Context, c types.Cible) error {
	if c.Saved() {
		return s.removeCible(ctx, c.ID, c.Label)
	}
	created, err := s.backend.CreateCible(ctx, c)
	if err != nil {
		return fmt.Errorf("resolve cible %q: %w", c.Label, err)
	}
	return s.removeCible(ctx, created.ID, c.Label)
}

func (s *Session) removeCible(ctx context.Context, cibleID int64, label string) error {
	configID, gen, err := s.current()
	if err != nil {
		return err
	}
	s.begin()
	err = s.backend.RemoveCible(ctx, configID, cibleID)
	s.end()
	if err != nil {
		s.log.Warn("remove cible failed", zap.Int64("cible_id", cibleID), zap.Error(err))
		return err
	}

	s.mu.Lock()
	if s.gen == gen {
		s.st.SelectedCibles = slices.DeleteFunc(slices.Clone(s.st.SelectedCibles), func(v types.Cible) bool {
			return v.ID == cibleID || (label != "" && v.Label == label)
		})
	}
	s.mu.Unlock()

	s.recheck(ctx, "remove cible")
	return nil
}

// CreateAndAddCible creates the target in the catalog, adds it, then
// refreshes the catalog.
func (s *Session) CreateAndAddCible(ctx context.Context, data types.Cible) (*types.Cible, error) {
	if _, _, err := s.current(); err != nil {
		return nil, err
	}
	created, err := s.backend.CreateCible(ctx, data)
	if err != nil {
		return nil, err
	}
	if err := s.AddCible(ctx, *created); err != nil {
		return nil, err
	}
	if _, err := s.LoadAllCibles(ctx); err != nil {
		logging.NonFatal(s.log, "refresh cible catalog", err)
	}
	return created, nil
}
