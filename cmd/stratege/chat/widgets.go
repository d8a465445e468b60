package chat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"stratege/internal/api"
	"stratege/internal/transcript"
	"stratege/internal/types"
)

// widgetHandler renders one widget kind and, for interactive widgets,
// handles its keys. rows reports how many lines the cursor can visit.
type widgetHandler struct {
	render func(m *Model, e transcript.Entry, live bool) string
	rows   func(m *Model) int
	keys   func(m *Model, key string) tea.Cmd
}

// widgetRenderers maps each widget directive to its presentation.
var widgetRenderers = map[transcript.Widget]widgetHandler{
	transcript.WidgetConfigSelection: {
		render: renderConfigSelection,
		rows:   func(m *Model) int { return len(m.session.State().Configurations) + 1 },
		keys:   configSelectionKeys,
	},
	transcript.WidgetObjectifFlow: {
		render: renderObjectifFlow,
		rows:   func(m *Model) int { return len(m.objectifRows()) },
		keys:   objectifFlowKeys,
	},
	transcript.WidgetCibleFlow: {
		render: renderCibleFlow,
		rows:   func(m *Model) int { return len(m.cibleRows()) },
		keys:   cibleFlowKeys,
	},
	transcript.WidgetGeneratingPlan: {
		render: renderGeneratingPlan,
	},
	transcript.WidgetPlanSummary: {
		render: renderPlanSummary,
		keys:   planSummaryKeys,
	},
}

// row is one line of a selection widget.
type row[T any] struct {
	item     T
	selected bool
	source   string
}

// buildRows lists the selected items first, then suggestions, then the
// catalog. Labels already listed are skipped.
func buildRows[T any](selected, suggested, all []T, label func(T) string) []row[T] {
	seen := make(map[string]bool, len(selected)+len(suggested)+len(all))
	var out []row[T]
	add := func(items []T, sel bool, source string) {
		for _, it := range items {
			l := label(it)
			if seen[l] {
				continue
			}
			seen[l] = true
			out = append(out, row[T]{item: it, selected: sel, source: source})
		}
	}
	add(selected, true, "")
	add(suggested, false, "suggestion IA")
	add(all, false, "catalogue")
	return out
}

func (m *Model) objectifRows() []row[types.Objectif] {
	st := m.session.State()
	return buildRows(st.SelectedObjectifs, st.SuggestedObjectifs, st.AllObjectifs,
		func(o types.Objectif) string { return o.Label })
}

func (m *Model) cibleRows() []row[types.Cible] {
	st := m.session.State()
	return buildRows(st.SelectedCibles, st.SuggestedCibles, st.AllCibles,
		func(c types.Cible) string { return c.Label })
}

func (m *Model) pointer(i int, live bool) string {
	if live && m.focus == focusWidget && i == m.cursor {
		return m.styles.Cursor.Render("› ")
	}
	return "  "
}

func (m *Model) box(title string, lines []string, hint string, live bool) string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render(title))
	sb.WriteString("\n")
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	if live && hint != "" {
		sb.WriteString(m.styles.Muted.Render(hint))
	}
	style := m.styles.Card
	if !live {
		style = style.Foreground(m.styles.Theme.Muted)
	}
	return style.Render(strings.TrimRight(sb.String(), "\n"))
}

func renderConfigSelection(m *Model, _ transcript.Entry, live bool) string {
	st := m.session.State()
	var lines []string
	if len(st.Configurations) == 0 {
		lines = append(lines, m.styles.Muted.Render("  Aucune configuration existante."))
	}
	for i, c := range st.Configurations {
		lines = append(lines, m.pointer(i, live)+m.styles.Body.Render(c.Nom))
	}
	lines = append(lines, m.pointer(len(st.Configurations), live)+m.styles.Prompt.Render("+ Nouvelle configuration"))
	return m.box("Configuration", lines, "↑/↓ choisir · entrée valider · tab revenir au message", live)
}

func configSelectionKeys(m *Model, key string) tea.Cmd {
	if key != "enter" {
		return nil
	}
	configs := m.session.State().Configurations
	if m.cursor < len(configs) {
		id := configs[m.cursor].ID
		return m.run("use_config", func(ctx context.Context) error { return m.wiz.UseConfiguration(ctx, id) })
	}
	m.askInput(InputModeConfigName, "Nom de la nouvelle configuration")
	return nil
}

func renderObjectifFlow(m *Model, _ transcript.Entry, live bool) string {
	st := m.session.State()
	rows := m.objectifRows()
	lines := make([]string, 0, len(rows)+1)
	if st.Loading && len(rows) == 0 {
		lines = append(lines, m.spinner.View()+" "+m.styles.Muted.Render("Chargement des objectifs..."))
	}
	for i, r := range rows {
		lines = append(lines, m.pointer(i, live)+m.selectionLine(r.selected, r.item.Label, r.item.Description, r.source))
	}
	title := fmt.Sprintf("Objectifs (%d/%d)", len(st.SelectedObjectifs), types.MaxObjectifs)
	return m.box(title, lines, "espace choisir · a personnalisé · r nouvelles suggestions · n continuer", live)
}

func objectifFlowKeys(m *Model, key string) tea.Cmd {
	switch key {
	case " ", "enter":
		rows := m.objectifRows()
		if m.cursor >= len(rows) {
			return nil
		}
		o := rows[m.cursor].item
		return m.run("toggle_objectif", func(ctx context.Context) error { return m.wiz.ToggleObjectif(ctx, o) })
	case "a":
		m.askInput(InputModeCustomObjectif, "Libellé de l'objectif personnalisé")
	case "r":
		return m.run("suggest_objectifs", m.wiz.RefreshObjectifSuggestions)
	case "n":
		return m.run("next_to_cibles", m.wiz.NextToCibles)
	}
	return nil
}

func renderCibleFlow(m *Model, _ transcript.Entry, live bool) string {
	st := m.session.State()
	rows := m.cibleRows()
	lines := make([]string, 0, len(rows)+1)
	if st.Loading && len(rows) == 0 {
		lines = append(lines, m.spinner.View()+" "+m.styles.Muted.Render("Chargement des cibles..."))
	}
	for i, r := range rows {
		detail := r.item.Persona
		if r.item.Segment != "" {
			detail = strings.TrimSpace(detail + " · " + r.item.Segment)
		}
		if r.item.Maturite != "" {
			detail = strings.TrimSpace(detail + " · " + string(r.item.Maturite))
		}
		lines = append(lines, m.pointer(i, live)+m.selectionLine(r.selected, r.item.Label, detail, r.source))
	}
	title := fmt.Sprintf("Cibles (%d/%d)", len(st.SelectedCibles), types.MaxCibles)
	return m.box(title, lines, "espace choisir · a personnalisée · r nouvelles suggestions · n générer le plan", live)
}

func cibleFlowKeys(m *Model, key string) tea.Cmd {
	switch key {
	case " ", "enter":
		rows := m.cibleRows()
		if m.cursor >= len(rows) {
			return nil
		}
		c := rows[m.cursor].item
		return m.run("toggle_cible", func(ctx context.Context) error { return m.wiz.ToggleCible(ctx, c) })
	case "a":
		m.askInput(InputModeCustomCible, "Libellé de la cible personnalisée")
	case "r":
		return m.run("suggest_cibles", m.wiz.RefreshCibleSuggestions)
	case "n":
		return m.run("generate_plan", m.wiz.GeneratePlan)
	}
	return nil
}

func (m *Model) selectionLine(selected bool, label, detail, source string) string {
	mark := m.styles.Muted.Render("[ ] ")
	text := m.styles.Body.Render(label)
	if selected {
		mark = m.styles.Selected.Render("[x] ")
		text = m.styles.Selected.Render(label)
	}
	line := mark + text
	if source != "" {
		line += " " + m.styles.Suggestion.Render("("+source+")")
	}
	if detail != "" {
		line += "\n      " + m.styles.Muted.Render(detail)
	}
	return line
}

func renderGeneratingPlan(m *Model, _ transcript.Entry, _ bool) string {
	return m.styles.Card.Render(m.spinner.View() + " " + m.styles.Info.Render("Génération du plan en cours..."))
}

func renderPlanSummary(m *Model, e transcript.Entry, live bool) string {
	plan, _ := e.Payload.(*types.GeneratedPlan)
	if plan == nil {
		return m.box("Plan", []string{m.styles.Muted.Render("Plan indisponible.")}, "", live)
	}
	lines := []string{m.styles.Muted.Render(fmt.Sprintf("Plan #%d", plan.PlanID))}
	if plan.Resume != "" {
		lines = append(lines, m.styles.Body.Render(plan.Resume), "")
	}
	for i, a := range plan.Articles {
		lines = append(lines, fmt.Sprintf("%2d. %s", i+1, m.styles.Bold.Render(a.Nom)))
		if a.Resume != "" {
			lines = append(lines, "    "+m.styles.Muted.Render(a.Resume))
		}
	}
	return m.box("Plan de contenu", lines, "e exporter CSV · j exporter JSON · x nouvelle stratégie", live)
}

func planSummaryKeys(m *Model, key string) tea.Cmd {
	switch key {
	case "e":
		return m.export(api.ExportCSV)
	case "j":
		return m.export(api.ExportJSON)
	case "x":
		m.focus = focusInput
		m.textarea.Focus()
		return m.run("new_strategy", func(context.Context) error { return m.wiz.NewStrategy() })
	}
	return nil
}

// export writes the selected scenario's export next to the working directory.
func (m *Model) export(format api.ExportFormat) tea.Cmd {
	sel := m.registry.Selected()
	if sel == nil {
		return func() tea.Msg { return exportMsg{err: fmt.Errorf("aucun scénario sélectionné")} }
	}
	id := sel.ID
	dir := m.exportDir
	ctx := m.ctx
	reg := m.registry
	return func() tea.Msg {
		data, err := reg.Export(ctx, id, format)
		if err != nil {
			return exportMsg{err: err}
		}
		path := filepath.Join(dir, fmt.Sprintf("plan-scenario-%d.%s", id, format))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return exportMsg{err: err}
		}
		return exportMsg{path: path}
	}
}

// liveWidget returns the last widget entry of the transcript.
func liveWidget(entries []transcript.Entry) (transcript.Entry, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind == transcript.KindWidget {
			return entries[i], true
		}
	}
	return transcript.Entry{}, false
}
