package chat

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratege/cmd/stratege/ui"
	"stratege/internal/api"
	"stratege/internal/configuration"
	"stratege/internal/mockapi"
	"stratege/internal/progress"
	"stratege/internal/scenario"
	"stratege/internal/transcript"
	"stratege/internal/types"
	"stratege/internal/wizard"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	mock := mockapi.New(nil, mockapi.WithSeed())
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)
	client, err := api.New(srv.URL, 5*time.Second, nil)
	require.NoError(t, err)

	reg := scenario.New(client, nil)
	sess := configuration.New(client, nil)
	prog := progress.New()
	tr := transcript.New()
	wiz := wizard.New(wizard.Deps{Registry: reg, Session: sess, Progress: prog, Transcript: tr, Chat: client})

	m := New(context.Background(), Config{
		Wizard:     wiz,
		Registry:   reg,
		Session:    sess,
		Progress:   prog,
		Transcript: tr,
		Styles:     ui.NewStyles(ui.LightTheme()),
		ExportDir:  t.TempDir(),
	})
	t.Cleanup(m.Close)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

// drive runs cmd and feeds the resulting messages back until nothing is
// left. Only the model's own command messages are followed.
func drive(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for i := 0; cmd != nil && i < 20; i++ {
		msg := cmd()
		switch msg.(type) {
		case opDoneMsg, scenariosMsg, suggestionsMsg, exportMsg:
		default:
			return m
		}
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(Model)
	}
	// Transcript changes are delivered asynchronously in a running program.
	next, _ := m.Update(transcriptMsg{})
	return next.(Model)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, k string) Model {
	t.Helper()
	next, cmd := m.Update(key(k))
	return drive(t, next.(Model), cmd)
}

func typeLine(t *testing.T, m Model, text string) Model {
	t.Helper()
	m.textarea.SetValue(text)
	return press(t, m, "enter")
}

func TestWidgetRenderersCoverEveryWidget(t *testing.T) {
	for _, w := range []transcript.Widget{
		transcript.WidgetConfigSelection,
		transcript.WidgetObjectifFlow,
		transcript.WidgetCibleFlow,
		transcript.WidgetGeneratingPlan,
		transcript.WidgetPlanSummary,
	} {
		h, ok := widgetRenderers[w]
		require.True(t, ok, "no renderer for %s", w)
		assert.NotNil(t, h.render, "%s", w)
	}
	assert.Nil(t, widgetRenderers[transcript.WidgetGeneratingPlan].keys)
}

func TestUnknownWidgetRendersPlaceholder(t *testing.T) {
	m := newTestModel(t)
	m.transcript.Append(transcript.WidgetEntry("mystery", nil))
	assert.Contains(t, m.renderTranscript(), "[widget mystery]")
}

func TestBuildRows(t *testing.T) {
	label := func(s string) string { return s }
	rows := buildRows([]string{"a"}, []string{"a", "b"}, []string{"b", "c"}, label)
	require.Len(t, rows, 3)
	assert.Equal(t, "a", rows[0].item)
	assert.True(t, rows[0].selected)
	assert.Equal(t, "suggestion IA", rows[1].source)
	assert.Equal(t, "catalogue", rows[2].source)
}

func TestFlowThroughTheUI(t *testing.T) {
	m := newTestModel(t)

	m = typeLine(t, m, "/start 1")
	assert.Equal(t, focusWidget, m.focus)
	view := m.View()
	assert.Contains(t, view, "Configuration")
	assert.Contains(t, view, "+ Nouvelle configuration")

	// No configuration yet: the only row creates one.
	m = press(t, m, "enter")
	require.Equal(t, InputModeConfigName, m.inputMode)
	m = typeLine(t, m, "Stratégie A")
	assert.Equal(t, InputModeChat, m.inputMode)
	assert.Equal(t, wizard.ObjectiveSelection, m.wiz.State().Step)
	assert.Equal(t, focusWidget, m.focus)
	assert.Contains(t, m.renderTranscript(), "Objectifs (0/2)")
	assert.Contains(t, m.renderTranscript(), "Augmenter notoriété")

	m = press(t, m, " ")
	assert.Contains(t, m.renderTranscript(), "Objectifs (1/2)")

	m = press(t, m, "n")
	require.Equal(t, wizard.TargetSelection, m.wiz.State().Step)
	assert.Equal(t, 0, m.cursor)
	m = press(t, m, " ")
	m = press(t, m, "down")
	m = press(t, m, " ")
	assert.Contains(t, m.renderTranscript(), "Cibles (2/3)")

	m = press(t, m, "n")
	require.Equal(t, wizard.PlanGenerated, m.wiz.State().Step)
	out := m.renderTranscript()
	assert.Contains(t, out, "Plan de contenu")
	assert.Equal(t, 1, m.transcript.Count(string(transcript.WidgetPlanSummary)))
	assert.Contains(t, m.renderHeader(), "✓ 4 Plan")

	m = press(t, m, "e")
	assert.Contains(t, m.statusMessage, "plan-scenario-1.csv")
	data, err := os.ReadFile(filepath.Join(m.exportDir, "plan-scenario-1.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Plan marketing"))

	m = press(t, m, "x")
	assert.Equal(t, wizard.Idle, m.wiz.State().Step)
	assert.Zero(t, m.transcript.Len())
}

func TestCustomObjectifInput(t *testing.T) {
	m := newTestModel(t)
	m = typeLine(t, m, "/start 1")
	m = press(t, m, "enter")
	m = typeLine(t, m, "Stratégie A")

	m = press(t, m, "a")
	require.Equal(t, InputModeCustomObjectif, m.inputMode)
	m = typeLine(t, m, "Recruter des partenaires")
	sel := m.session.State().SelectedObjectifs
	require.Len(t, sel, 1)
	assert.Equal(t, "Recruter des partenaires", sel[0].Label)

	// Escape cancels a pending input and gives the keys back to the widget.
	m = press(t, m, "a")
	m = press(t, m, "esc")
	assert.Equal(t, InputModeChat, m.inputMode)
	assert.Equal(t, focusWidget, m.focus)
}

func TestCapacityErrorIsShownInline(t *testing.T) {
	m := newTestModel(t)
	m = typeLine(t, m, "/start 1")
	m = press(t, m, "enter")
	m = typeLine(t, m, "Stratégie A")

	for i := 0; i < 3; i++ {
		m = press(t, m, " ")
		m = press(t, m, "down")
	}
	assert.Contains(t, m.renderErrorLine(), "Maximum 2 objectifs")
}

func TestChatMessageAndAction(t *testing.T) {
	m := newTestModel(t)
	_, err := m.registry.Select(context.Background(), 1)
	require.NoError(t, err)

	m = typeLine(t, m, "Je veux lancer une campagne")
	out := m.renderTranscript()
	assert.Contains(t, out, "Je veux lancer une campagne")
	assert.Contains(t, m.renderFooter(), "/action 1")

	m = typeLine(t, m, "/action 1")
	assert.Equal(t, 4, m.transcript.Len())

	m = typeLine(t, m, "/action 9")
	assert.Contains(t, m.statusMessage, "action invalide")
}

func TestScenarioListStartsScenario(t *testing.T) {
	m := newTestModel(t)
	m = typeLine(t, m, "/scenarios")
	require.Equal(t, ScenarioListView, m.viewMode)
	require.NotEmpty(t, m.list.Items())

	m = press(t, m, "enter")
	assert.Equal(t, ChatView, m.viewMode)
	assert.Equal(t, wizard.ConfiguringSelection, m.wiz.State().Step)
}

func TestSuggestAndAdopt(t *testing.T) {
	m := newTestModel(t)
	listed, err := m.registry.List(context.Background())
	require.NoError(t, err)
	before := len(listed)

	m = typeLine(t, m, "/suggerer")
	require.NotEmpty(t, m.suggestions)
	entries := m.transcript.Entries()
	require.NotEmpty(t, entries)
	note := entries[len(entries)-1]
	assert.Equal(t, transcript.AuthorSystem, note.Author)
	assert.Contains(t, note.Text, "Idées de scénarios")

	m = typeLine(t, m, "/adopter 1")
	assert.Len(t, m.registry.State().Scenarios, before+1)
}

func TestCommandErrors(t *testing.T) {
	m := newTestModel(t)

	m = typeLine(t, m, "/inconnu")
	assert.Contains(t, m.statusMessage, "Commande inconnue")
	m = typeLine(t, m, "/start abc")
	assert.Contains(t, m.statusMessage, "identifiant invalide")
	m = typeLine(t, m, "/adopter 1")
	assert.Contains(t, m.statusMessage, "/suggerer")
	m = typeLine(t, m, "/creer Seulement un nom")
	assert.Contains(t, m.statusMessage, "usage")
}

func TestParseScenarioInput(t *testing.T) {
	in, err := parseScenarioInput("Lancement | B2B SaaS | Nouveau | produit")
	require.NoError(t, err)
	assert.Equal(t, types.ScenarioInput{Nom: "Lancement", Thematique: "B2B SaaS", Description: "Nouveau | produit"}, in)

	_, err = parseScenarioInput(" | B2B")
	assert.Error(t, err)
}

func TestParseIndex(t *testing.T) {
	i, err := parseIndex([]string{"2"}, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	_, err = parseIndex(nil, 0)
	assert.Error(t, err)
	_, err = parseIndex([]string{"3"}, 2)
	assert.Error(t, err)
}
