package wizard

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"stratege/internal/logging"
	"stratege/internal/types"
)

// OpenObjectifs loads the objective catalog and fresh suggestions in
// parallel. Both are optional for the flow: failures are logged and the
// first one is returned for display.
func (w *Wizard) OpenObjectifs(ctx context.Context) error {
	if err := w.acquire(); err != nil {
		return err
	}
	defer w.release()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := w.session.LoadAllObjectifs(gctx)
		logging.NonFatal(w.log, "load objectif catalog", err)
		return err
	})
	g.Go(func() error {
		_, err := w.session.SuggestObjectifs(gctx)
		logging.NonFatal(w.log, "suggest objectifs", err)
		return err
	})
	if err := g.Wait(); err != nil {
		w.setErr(err)
		return err
	}
	return nil
}

// OpenCibles is OpenObjectifs for targets.
func (w *Wizard) OpenCibles(ctx context.Context) error {
	if err := w.acquire(); err != nil {
		return err
	}
	defer w.release()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := w.session.LoadAllCibles(gctx)
		logging.NonFatal(w.log, "load cible catalog", err)
		return err
	})
	g.Go(func() error {
		_, err := w.session.SuggestCibles(gctx)
		logging.NonFatal(w.log, "suggest cibles", err)
		return err
	})
	if err := g.Wait(); err != nil {
		w.setErr(err)
		return err
	}
	return nil
}

// RefreshObjectifSuggestions replaces the objective suggestions.
func (w *Wizard) RefreshObjectifSuggestions(ctx context.Context) error {
	if err := w.acquire(); err != nil {
		return err
	}
	defer w.release()
	if _, err := w.session.SuggestObjectifs(ctx); err != nil {
		w.setErr(err)
		return err
	}
	return nil
}

// RefreshCibleSuggestions replaces the target suggestions.
func (w *Wizard) RefreshCibleSuggestions(ctx context.Context) error {
	if err := w.acquire(); err != nil {
		return err
	}
	defer w.release()
	if _, err := w.session.SuggestCibles(ctx); err != nil {
		w.setErr(err)
		return err
	}
	return nil
}

// ToggleObjectif deselects o when an objective with the same label is
// selected, and adds it otherwise. Errors, capacity included, are kept as
// the inline error.
func (w *Wizard) ToggleObjectif(ctx context.Context, o types.Objectif) error {
	if err := w.acquire(); err != nil {
		return err
	}
	defer w.release()

	sel := w.session.State().SelectedObjectifs
	var err error
	if i := slices.IndexFunc(sel, func(v types.Objectif) bool { return v.Label == o.Label }); i >= 0 {
		err = w.session.DeselectObjectif(ctx, sel[i])
	} else {
		err = w.session.AddObjectif(ctx, o)
	}
	if err != nil {
		w.setErr(err)
	}
	return err
}

// ToggleCible is ToggleObjectif for targets.
func (w *Wizard) ToggleCible(ctx context.Context, c types.Cible) error {
	if err := w.acquire(); err != nil {
		return err
	}
	defer w.release()

	sel := w.session.State().SelectedCibles
	var err error
	if i := slices.IndexFunc(sel, func(v types.Cible) bool { return v.Label == c.Label }); i >= 0 {
		err = w.session.DeselectCible(ctx, sel[i])
	} else {
		err = w.session.AddCible(ctx, c)
	}
	if err != nil {
		w.setErr(err)
	}
	return err
}

// CreateObjectif creates a custom objective and selects it.
func (w *Wizard) CreateObjectif(ctx context.Context, data types.Objectif) error {
	if err := w.acquire(); err != nil {
		return err
	}
	defer w.release()
	if _, err := w.session.CreateAndAddObjectif(ctx, data); err != nil {
		w.setErr(err)
		return err
	}
	return nil
}

// CreateCible creates a custom target and selects it.
func (w *Wizard) CreateCible(ctx context.Context, data types.Cible) error {
	if err := w.acquire(); err != nil {
		return err
	}
	defer w.release()
	if _, err := w.session.CreateAndAddCible(ctx, data); err != nil {
		w.setErr(err)
		return err
	}
	return nil
}
