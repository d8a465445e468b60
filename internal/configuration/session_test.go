package configuration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratege/internal/api"
	"stratege/internal/mockapi"
	"stratege/internal/types"
)

const linkObjectifRoute = "POST /api/configurations/:id/objectifs"

type fixture struct {
	session  *Session
	mock     *mockapi.Server
	client   *api.Client
	scenario int64
	config   int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mock := mockapi.New(nil)
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)
	client, err := api.New(srv.URL, 5*time.Second, nil)
	require.NoError(t, err)

	ctx := context.Background()
	sc, err := client.CreateScenario(ctx, types.ScenarioInput{Nom: "Lancement produit", Thematique: "B2B SaaS"})
	require.NoError(t, err)

	s := New(client, nil)
	cfg, err := s.Create(ctx, sc.ID, "Stratégie A")
	require.NoError(t, err)
	_, err = s.Select(ctx, cfg.ID)
	require.NoError(t, err)

	return &fixture{session: s, mock: mock, client: client, scenario: sc.ID, config: cfg.ID}
}

func labels[T any](items []T, label func(T) string) []string {
	out := make([]string, len(items))
	for i, v := range items {
		out[i] = label(v)
	}
	return out
}

func TestAddObjectif_CapIsTwo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.session.AddObjectif(ctx, types.Objectif{Label: "Augmenter notoriété"}))
	require.NoError(t, f.session.AddObjectif(ctx, types.Objectif{Label: "Générer des leads"}))
	before := f.session.State().SelectedObjectifs
	calls := f.mock.CountRequests(linkObjectifRoute)

	err := f.session.AddObjectif(ctx, types.Objectif{Label: "Fidéliser"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCapacity))
	var capErr *CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, types.MaxObjectifs, capErr.Max)

	assert.Equal(t, before, f.session.State().SelectedObjectifs)
	assert.Equal(t, calls, f.mock.CountRequests(linkObjectifRoute), "no network call on capacity error")
}

func TestAddCible_CapIsThree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < types.MaxCibles; i++ {
		require.NoError(t, f.session.AddCible(ctx, types.Cible{Label: fmt.Sprintf("Persona %d", i)}))
	}
	for i := 0; i < 3; i++ {
		err := f.session.AddCible(ctx, types.Cible{Label: fmt.Sprintf("Extra %d", i)})
		assert.ErrorIs(t, err, ErrCapacity)
		assert.Equal(t, types.MaxCibles, f.session.CiblesCount())
	}
}

func TestConcurrentAddsNeverExceedCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		okCount int
		capErrs int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := f.session.AddObjectif(ctx, types.Objectif{Label: fmt.Sprintf("Objectif %d", i)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				okCount++
			case errors.Is(err, ErrCapacity):
				capErrs++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, types.MaxObjectifs, okCount)
	assert.Equal(t, 4, capErrs)
	assert.Equal(t, types.MaxObjectifs, f.session.ObjectifsCount())
	assert.Equal(t, types.MaxObjectifs, f.mock.CountRequests(linkObjectifRoute))
}

func TestAddFailureLeavesSelectionUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mock.FailNext(linkObjectifRoute, http.StatusInternalServerError, "erreur base")

	err := f.session.AddObjectif(ctx, types.Objectif{Label: "Augmenter notoriété"})
	require.Error(t, err)
	assert.Equal(t, "erreur base", err.Error())
	assert.Empty(t, f.session.State().SelectedObjectifs)

	// The reserved slot is released.
	require.NoError(t, f.session.AddObjectif(ctx, types.Objectif{Label: "a"}))
	require.NoError(t, f.session.AddObjectif(ctx, types.Objectif{Label: "b"}))
}

func TestRemoveThenReselectMatchesBackend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.session.CreateAndAddObjectif(ctx, types.Objectif{Label: "Augmenter notoriété"})
	require.NoError(t, err)
	_, err = f.session.CreateAndAddObjectif(ctx, types.Objectif{Label: "Générer des leads"})
	require.NoError(t, err)
	for _, l := range []string{"DSI", "CMO"} {
		_, err = f.session.CreateAndAddCible(ctx, types.Cible{Label: l})
		require.NoError(t, err)
	}

	st := f.session.State()
	require.NoError(t, f.session.RemoveObjectif(ctx, st.SelectedObjectifs[0].ID))
	require.NoError(t, f.session.RemoveCible(ctx, st.SelectedCibles[1].ID))
	local := f.session.State()

	detail, err := f.session.Select(ctx, f.config)
	require.NoError(t, err)

	if diff := cmp.Diff(labels(local.SelectedObjectifs, objectifLabel), labels(detail.Objectifs, objectifLabel)); diff != "" {
		t.Errorf("objectifs diverge from backend (-local +backend):\n%s", diff)
	}
	if diff := cmp.Diff(labels(local.SelectedCibles, cibleLabel), labels(detail.Cibles, cibleLabel)); diff != "" {
		t.Errorf("cibles diverge from backend (-local +backend):\n%s", diff)
	}
	assert.Equal(t, []string{"Générer des leads"}, labels(f.session.State().SelectedObjectifs, objectifLabel))
}

func TestResetIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.session.AddObjectif(ctx, types.Objectif{Label: "a"}))
	_, err := f.session.SuggestCibles(ctx)
	require.NoError(t, err)

	f.session.Reset()
	first := f.session.State()
	f.session.Reset()
	second := f.session.State()

	assert.Equal(t, State{}, first)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second reset differs (-first +second):\n%s", diff)
	}
}

func TestSuggestionsReplacePreviousList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.session.SuggestObjectifs(ctx)
	require.NoError(t, err)
	second, err := f.session.SuggestObjectifs(ctx)
	require.NoError(t, err)

	got := f.session.State().SuggestedObjectifs
	assert.Len(t, got, len(second))
	assert.Equal(t, labels(second, objectifLabel), labels(got, objectifLabel))
	assert.NotEqual(t, labels(first, objectifLabel), labels(got, objectifLabel))
}

func TestReAddUpgradesUnsavedSuggestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	suggestion := types.Objectif{Label: "Augmenter notoriété", Description: "IA"}
	require.NoError(t, f.session.AddObjectif(ctx, suggestion))
	require.NoError(t, f.session.AddObjectif(ctx, types.Objectif{Label: "Générer des leads"}))
	require.False(t, f.session.State().SelectedObjectifs[0].Saved())

	// Selection is full, yet persisting an already selected label succeeds.
	created, err := f.session.CreateAndAddObjectif(ctx, suggestion)
	require.NoError(t, err)

	sel := f.session.State().SelectedObjectifs
	require.Len(t, sel, 2)
	assert.Equal(t, created.ID, sel[0].ID)
	assert.Equal(t, "Augmenter notoriété", sel[0].Label)
}

func TestDeselectUnsavedSuggestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := types.Cible{Label: "Fondateur de startup"}
	require.NoError(t, f.session.AddCible(ctx, c))
	require.NoError(t, f.session.DeselectCible(ctx, c))

	assert.Empty(t, f.session.State().SelectedCibles)
	detail, err := f.client.GetConfiguration(ctx, f.config)
	require.NoError(t, err)
	assert.Empty(t, detail.Cibles)
}

func TestCreateAndAdd_CreateFailureSkipsAdd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mock.FailNext("POST /api/objectifs", http.StatusBadRequest, "label est requis")

	_, err := f.session.CreateAndAddObjectif(ctx, types.Objectif{Label: "x"})
	require.Error(t, err)
	assert.Equal(t, 0, f.mock.CountRequests(linkObjectifRoute))
	assert.Empty(t, f.session.State().SelectedObjectifs)
}

func TestCreateAndAdd_CatalogRefreshFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mock.FailNext("GET /api/objectifs", http.StatusInternalServerError, "boom")

	created, err := f.session.CreateAndAddObjectif(ctx, types.Objectif{Label: "x"})
	require.NoError(t, err)
	assert.True(t, created.Saved())
	assert.Equal(t, 1, f.session.ObjectifsCount())
}

func TestCanCreatePlanFollowsMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assert.False(t, f.session.State().CanCreatePlan)

	_, err := f.session.CreateAndAddObjectif(ctx, types.Objectif{Label: "a"})
	require.NoError(t, err)
	assert.False(t, f.session.State().CanCreatePlan)

	c, err := f.session.CreateAndAddCible(ctx, types.Cible{Label: "DSI"})
	require.NoError(t, err)
	assert.True(t, f.session.State().CanCreatePlan)

	require.NoError(t, f.session.RemoveCible(ctx, c.ID))
	assert.False(t, f.session.State().CanCreatePlan)
}

func TestGeneratePlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.session.GeneratePlan(ctx)
	require.Error(t, err, "backend rejects an ineligible configuration")

	_, err = f.session.CreateAndAddObjectif(ctx, types.Objectif{Label: "a"})
	require.NoError(t, err)
	_, err = f.session.CreateAndAddCible(ctx, types.Cible{Label: "b"})
	require.NoError(t, err)

	plan, err := f.session.GeneratePlan(ctx)
	require.NoError(t, err)
	st := f.session.State()
	require.NotNil(t, st.LastPlan)
	assert.Equal(t, plan.PlanID, st.LastPlan.PlanID)
	require.NotNil(t, st.Selected)
	assert.Len(t, st.Selected.Plans, 1)
}

func TestOperationsWithoutConfiguration(t *testing.T) {
	s := New(nil, nil)
	ctx := context.Background()

	assert.ErrorIs(t, s.AddObjectif(ctx, types.Objectif{Label: "a"}), ErrNoConfiguration)
	assert.ErrorIs(t, s.AddCible(ctx, types.Cible{Label: "a"}), ErrNoConfiguration)
	_, err := s.SuggestObjectifs(ctx)
	assert.ErrorIs(t, err, ErrNoConfiguration)
	_, err = s.GeneratePlan(ctx)
	assert.ErrorIs(t, err, ErrNoConfiguration)
	_, err = s.CheckCanCreatePlan(ctx)
	assert.ErrorIs(t, err, ErrNoConfiguration)
}

func TestLoadForScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	list, err := f.session.LoadForScenario(ctx, f.scenario)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Stratégie A", list[0].Nom)

	f.mock.FailNext("GET /api/scenarios/:id/configurations", http.StatusInternalServerError, "")
	_, err = f.session.LoadForScenario(ctx, f.scenario)
	require.Error(t, err)
	st := f.session.State()
	assert.Empty(t, st.Configurations)
	assert.Equal(t, f.scenario, st.ScenarioID)
}

func TestDeleteCurrentConfiguration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.session.AddObjectif(ctx, types.Objectif{Label: "a"}))

	require.NoError(t, f.session.DeleteConfiguration(ctx, f.config))
	st := f.session.State()
	assert.Zero(t, st.ConfigID)
	assert.Empty(t, st.SelectedObjectifs)
	assert.Empty(t, st.Configurations)
}

func TestCreateStartsWithEmptySelections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.session.AddObjectif(ctx, types.Objectif{Label: "A1"}))
	require.NoError(t, f.session.AddObjectif(ctx, types.Objectif{Label: "A2"}))
	require.NoError(t, f.session.AddCible(ctx, types.Cible{Label: "DSI"}))
	_, err := f.session.SuggestObjectifs(ctx)
	require.NoError(t, err)

	cfg, err := f.session.Create(ctx, f.scenario, "Stratégie B")
	require.NoError(t, err)

	st := f.session.State()
	assert.Equal(t, cfg.ID, st.ConfigID)
	assert.Nil(t, st.Selected)
	assert.Empty(t, st.SelectedObjectifs)
	assert.Empty(t, st.SelectedCibles)
	assert.Empty(t, st.SuggestedObjectifs)
	assert.False(t, st.CanCreatePlan)
	assert.Nil(t, st.LastPlan)
	assert.Len(t, st.Configurations, 2)

	// The new configuration has room for both objectives again.
	require.NoError(t, f.session.AddObjectif(ctx, types.Objectif{Label: "B1"}))
	detail, err := f.client.GetConfiguration(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"B1"}, labels(detail.Objectifs, objectifLabel))
	assert.Equal(t, []string{"B1"}, labels(f.session.State().SelectedObjectifs, objectifLabel))
}
