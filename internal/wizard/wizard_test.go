package wizard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"stratege/internal/api"
	"stratege/internal/configuration"
	"stratege/internal/mockapi"
	"stratege/internal/progress"
	"stratege/internal/scenario"
	"stratege/internal/transcript"
	"stratege/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

type harness struct {
	w        *Wizard
	mock     *mockapi.Server
	registry *scenario.Registry
	session  *configuration.Session
	progress *progress.Tracker
	log      *transcript.Transcript
}

func newHarness(t *testing.T, chat ChatBackend) *harness {
	t.Helper()
	mock := mockapi.New(nil, mockapi.WithSeed())
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)
	client, err := api.New(srv.URL, 5*time.Second, nil)
	require.NoError(t, err)
	if chat == nil {
		chat = client
	}

	h := &harness{
		mock:     mock,
		registry: scenario.New(client, nil),
		session:  configuration.New(client, nil),
		progress: progress.New(),
		log:      transcript.New(),
	}
	h.w = New(Deps{
		Registry:   h.registry,
		Session:    h.session,
		Progress:   h.progress,
		Transcript: h.log,
		Chat:       chat,
	})
	return h
}

func (h *harness) last(t *testing.T) transcript.Entry {
	t.Helper()
	entries := h.log.Entries()
	require.NotEmpty(t, entries)
	return entries[len(entries)-1]
}

// toObjectives drives the flow up to objective selection on seeded scenario 1.
func (h *harness) toObjectives(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.w.Start(ctx, 1))
	require.NoError(t, h.w.CreateConfiguration(ctx, "Stratégie A"))
	require.NoError(t, h.w.OpenObjectifs(ctx))
}

func TestFullFlowEndsWithOnePlanSummary(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.w.Start(ctx, 1))
	assert.Equal(t, ConfiguringSelection, h.w.State().Step)
	assert.Equal(t, 1, h.log.Count(string(transcript.WidgetConfigSelection)))
	assert.Equal(t, progress.StepConfiguration, h.progress.State().CurrentStep)
	require.NotNil(t, h.registry.Selected())
	assert.Contains(t, h.log.Entries()[0].Text, h.registry.Selected().Nom)

	require.NoError(t, h.w.CreateConfiguration(ctx, "Stratégie A"))
	assert.Equal(t, ObjectiveSelection, h.w.State().Step)
	ps := h.progress.State()
	assert.Equal(t, progress.StepObjectifs, ps.CurrentStep)
	assert.True(t, ps.ConfigCompleted)
	assert.Zero(t, h.log.Count(string(transcript.WidgetConfigSelection)))
	assert.Equal(t, 1, h.log.Count(string(transcript.WidgetObjectifFlow)))

	require.NoError(t, h.w.OpenObjectifs(ctx))
	st := h.session.State()
	require.NotEmpty(t, st.SuggestedObjectifs)
	require.NotEmpty(t, st.AllObjectifs)
	suggestion := st.SuggestedObjectifs[0]
	require.False(t, suggestion.Saved())
	require.NoError(t, h.w.ToggleObjectif(ctx, suggestion))

	require.NoError(t, h.w.NextToCibles(ctx))
	assert.Equal(t, TargetSelection, h.w.State().Step)
	for _, o := range h.session.State().SelectedObjectifs {
		assert.True(t, o.Saved(), "objectif %q persisted", o.Label)
	}
	assert.Equal(t, progress.StepCibles, h.progress.State().CurrentStep)
	assert.Equal(t, 1, h.log.Count(string(transcript.WidgetCibleFlow)))

	require.NoError(t, h.w.OpenCibles(ctx))
	cibles := h.session.State().SuggestedCibles
	require.GreaterOrEqual(t, len(cibles), 2)
	require.NoError(t, h.w.ToggleCible(ctx, cibles[0]))
	require.NoError(t, h.w.ToggleCible(ctx, cibles[1]))

	require.NoError(t, h.w.GeneratePlan(ctx))
	assert.Equal(t, PlanGenerated, h.w.State().Step)
	assert.Equal(t, 1, h.log.Count(string(transcript.WidgetPlanSummary)))
	assert.Zero(t, h.log.Count(string(transcript.WidgetGeneratingPlan)))

	ps = h.progress.State()
	assert.Equal(t, progress.StepPlan, ps.CurrentStep)
	assert.True(t, ps.PlanGenerated)
	assert.Equal(t, 1, ps.ObjectifsCount)
	assert.Equal(t, 2, ps.CiblesCount)

	summary := h.last(t)
	require.Equal(t, transcript.KindWidget, summary.Kind)
	plan, ok := summary.Payload.(*types.GeneratedPlan)
	require.True(t, ok, "plan summary carries the generated plan")
	assert.NotEmpty(t, plan.Articles)
	assert.Equal(t, types.StatusReady, h.registry.Selected().Statut)
}

func TestStartTwiceKeepsOneChooser(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.w.Start(ctx, 1))
	require.NoError(t, h.w.Start(ctx, 2))
	assert.Equal(t, 1, h.log.Count(string(transcript.WidgetConfigSelection)))
	assert.Equal(t, int64(2), h.w.State().ScenarioID)
}

func TestStartDropsWidgetsOfEarlierRun(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.toObjectives(t)
	require.NoError(t, h.w.ToggleObjectif(ctx, h.session.State().SuggestedObjectifs[0]))
	require.NoError(t, h.w.NextToCibles(ctx))
	require.Equal(t, 1, h.log.Count(string(transcript.WidgetCibleFlow)))

	require.NoError(t, h.w.Start(ctx, 2))
	for _, widget := range []transcript.Widget{
		transcript.WidgetObjectifFlow,
		transcript.WidgetCibleFlow,
		transcript.WidgetGeneratingPlan,
		transcript.WidgetPlanSummary,
	} {
		assert.Zero(t, h.log.Count(string(widget)), "widget %s", widget)
	}
	assert.Equal(t, 1, h.log.Count(string(transcript.WidgetConfigSelection)))
	assert.Equal(t, ConfiguringSelection, h.w.State().Step)
}

func TestStart_LoadFailureShowsEmptyChooser(t *testing.T) {
	h := newHarness(t, nil)
	h.mock.FailNext("GET /api/scenarios/:id/configurations", http.StatusInternalServerError, "boom")

	require.NoError(t, h.w.Start(context.Background(), 1))
	last := h.last(t)
	assert.Equal(t, transcript.WidgetConfigSelection, last.Widget)
	assert.Empty(t, last.Payload)
	assert.Equal(t, ConfiguringSelection, h.w.State().Step)
}

func TestUseConfiguration_FailureKeepsChooser(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.w.Start(ctx, 1))
	h.mock.FailNext("GET /api/configurations/:id", http.StatusNotFound, "Configuration not found")

	err := h.w.UseConfiguration(ctx, 999)
	require.Error(t, err)
	assert.Equal(t, 1, h.log.Count(string(transcript.WidgetConfigSelection)))
	assert.Contains(t, h.last(t).Text, "Configuration not found")
	assert.Equal(t, ConfiguringSelection, h.w.State().Step)
	assert.Equal(t, "Configuration not found", h.w.State().Err)
	assert.False(t, h.progress.State().ConfigCompleted)
}

func TestCreateConfiguration_WithoutScenario(t *testing.T) {
	h := newHarness(t, nil)
	assert.ErrorIs(t, h.w.CreateConfiguration(context.Background(), "x"), ErrNoScenario)
}

func TestNextToCibles_PersistFailureDoesNotAdvance(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.toObjectives(t)

	require.NoError(t, h.w.ToggleObjectif(ctx, h.session.State().SuggestedObjectifs[0]))
	h.mock.FailNext("POST /api/objectifs", http.StatusInternalServerError, "erreur base")

	require.Error(t, h.w.NextToCibles(ctx))
	assert.Equal(t, ObjectiveSelection, h.w.State().Step)
	assert.Equal(t, progress.StepObjectifs, h.progress.State().CurrentStep)
	assert.Equal(t, 1, h.log.Count(string(transcript.WidgetObjectifFlow)))
	assert.Contains(t, h.last(t).Text, "erreur base")
}

func TestNextToCibles_RequiresSelection(t *testing.T) {
	h := newHarness(t, nil)
	h.toObjectives(t)
	assert.ErrorIs(t, h.w.NextToCibles(context.Background()), ErrEmptySelection)
	assert.Equal(t, ObjectiveSelection, h.w.State().Step)
}

func TestGeneratePlan_FailureRemovesSentinel(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.toObjectives(t)
	require.NoError(t, h.w.ToggleObjectif(ctx, h.session.State().SuggestedObjectifs[0]))
	require.NoError(t, h.w.NextToCibles(ctx))
	require.NoError(t, h.w.OpenCibles(ctx))
	require.NoError(t, h.w.ToggleCible(ctx, h.session.State().SuggestedCibles[0]))

	h.mock.FailNext("POST /api/configurations/:id/generate-plan", http.StatusInternalServerError, "Génération impossible")
	require.Error(t, h.w.GeneratePlan(ctx))

	assert.Zero(t, h.log.Count(string(transcript.WidgetGeneratingPlan)))
	assert.Zero(t, h.log.Count(string(transcript.WidgetPlanSummary)))
	assert.Contains(t, h.last(t).Text, "Génération impossible")
	assert.Equal(t, TargetSelection, h.w.State().Step)
	assert.False(t, h.progress.State().PlanGenerated)

	// Retrying works once the backend recovers.
	require.NoError(t, h.w.GeneratePlan(ctx))
	assert.Equal(t, 1, h.log.Count(string(transcript.WidgetPlanSummary)))
}

func TestToggleObjectif_CapacityAndDeselect(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.toObjectives(t)

	sugg := h.session.State().SuggestedObjectifs
	require.GreaterOrEqual(t, len(sugg), 3)
	require.NoError(t, h.w.ToggleObjectif(ctx, sugg[0]))
	require.NoError(t, h.w.ToggleObjectif(ctx, sugg[1]))

	err := h.w.ToggleObjectif(ctx, sugg[2])
	assert.ErrorIs(t, err, configuration.ErrCapacity)
	assert.NotEmpty(t, h.w.State().Err)
	assert.Equal(t, 2, h.progress.State().ObjectifsCount)

	require.NoError(t, h.w.ToggleObjectif(ctx, sugg[0]))
	assert.Empty(t, h.w.State().Err)
	assert.Equal(t, 1, h.progress.State().ObjectifsCount)
	assert.Equal(t, sugg[1].Label, h.session.State().SelectedObjectifs[0].Label)
}

func TestCreateObjectif_SelectsCustomEntry(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.toObjectives(t)

	require.NoError(t, h.w.CreateObjectif(ctx, types.Objectif{Label: "Recruter des partenaires"}))
	sel := h.session.State().SelectedObjectifs
	require.Len(t, sel, 1)
	assert.True(t, sel[0].Saved())
	assert.Equal(t, 1, h.progress.State().ObjectifsCount)
}

func TestNewStrategyResetsEverything(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.toObjectives(t)
	require.NoError(t, h.w.ToggleObjectif(ctx, h.session.State().SuggestedObjectifs[0]))

	require.NoError(t, h.w.NewStrategy())
	st := h.w.State()
	assert.Equal(t, Idle, st.Step)
	assert.Zero(t, st.ScenarioID)
	assert.Zero(t, h.log.Len())
	assert.Equal(t, progress.State{}, h.progress.State())
	assert.Zero(t, h.session.ConfigID())
	assert.Nil(t, h.registry.Selected())
}

func TestSend_SelectsReturnedScenario(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	_, err := h.registry.Select(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, h.w.Send(ctx, "  Je veux lancer une campagne  "))
	entries := h.log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, transcript.AuthorUser, entries[0].Author)
	assert.Equal(t, "Je veux lancer une campagne", entries[0].Text)
	assert.Equal(t, transcript.AuthorAssistant, entries[1].Author)
	assert.Equal(t, int64(2), entries[1].ScenarioID)

	st := h.w.State()
	assert.Equal(t, ScenarioChosen, st.Step)
	assert.Len(t, st.Actions, 2)
	assert.False(t, st.Thinking)
	assert.NotEmpty(t, h.registry.State().Scenarios)
	assert.Equal(t, int64(2), st.ScenarioID)

	// The scenario picked up from the reply is the one configurations go to.
	require.NoError(t, h.w.CreateConfiguration(ctx, "Depuis le chat"))
	assert.Equal(t, ObjectiveSelection, h.w.State().Step)
	configs, err := h.session.LoadForScenario(ctx, 2)
	require.NoError(t, err)
	require.NotEmpty(t, configs)
	assert.Equal(t, "Depuis le chat", configs[len(configs)-1].Nom)
}

func TestTrigger_UsesActionLabel(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	_, err := h.registry.Select(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, h.w.Send(ctx, "bonjour"))

	action := h.w.State().Actions[0]
	require.NoError(t, h.w.Trigger(ctx, action))
	entries := h.log.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, action.Label, entries[2].Text)
	assert.True(t, strings.Contains(entries[3].Text, action.Action))
}

func TestSend_FailureKeepsOnlyUserMessage(t *testing.T) {
	h := newHarness(t, nil)
	h.mock.FailNext("POST /api/chat", http.StatusServiceUnavailable, "LLM indisponible")

	require.Error(t, h.w.Send(context.Background(), "bonjour"))
	assert.Equal(t, 1, h.log.Len())
	st := h.w.State()
	assert.Equal(t, "LLM indisponible", st.Err)
	assert.False(t, st.Thinking)
	assert.False(t, st.Busy)
}

func TestSend_EmptyMessage(t *testing.T) {
	h := newHarness(t, nil)
	assert.ErrorIs(t, h.w.Send(context.Background(), "   "), ErrEmptyMessage)
	assert.Zero(t, h.log.Len())
}

type blockingChat struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingChat) Chat(ctx context.Context, req types.ChatRequest) (*types.ChatResponse, error) {
	close(b.started)
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &types.ChatResponse{Message: "ok"}, nil
}

func TestOperationsAreRejectedWhileBusy(t *testing.T) {
	chat := &blockingChat{started: make(chan struct{}), release: make(chan struct{})}
	h := newHarness(t, chat)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- h.w.Send(ctx, "bonjour") }()
	<-chat.started

	st := h.w.State()
	assert.True(t, st.Busy)
	assert.True(t, st.Thinking)
	assert.ErrorIs(t, h.w.NewStrategy(), ErrBusy)
	assert.ErrorIs(t, h.w.Start(ctx, 1), ErrBusy)
	assert.ErrorIs(t, h.w.Send(ctx, "encore"), ErrBusy)

	close(chat.release)
	require.NoError(t, <-done)
	assert.False(t, h.w.State().Busy)
	assert.NoError(t, h.w.NewStrategy())
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "target_selection", TargetSelection.String())
	assert.Equal(t, "step(42)", Step(42).String())
}
