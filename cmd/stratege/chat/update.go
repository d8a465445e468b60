package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"stratege/internal/transcript"
	"stratege/internal/types"
	"stratege/internal/wizard"
)

const (
	headerHeight = 3
	footerHeight = 1
	inputHeight  = 3
	errorHeight  = 1
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.wiz.State().Busy || m.session.State().Loading {
			m.refresh(false)
		}
		return m, cmd

	case transcriptMsg:
		m.syncLiveWidget()
		m.refresh(true)
		return m, m.waitForTranscript()

	case opDoneMsg:
		return m.handleOpDone(msg)

	case scenariosMsg:
		if msg.err != nil {
			m.statusMessage = "Scénarios indisponibles : " + msg.err.Error()
		}
		m.setScenarioItems()
		return m, nil

	case suggestionsMsg:
		if msg.err != nil {
			m.statusMessage = "Suggestions indisponibles : " + msg.err.Error()
			return m, nil
		}
		m.suggestions = msg.list
		m.system(formatSuggestions(msg.list))
		return m, nil

	case exportMsg:
		if msg.err != nil {
			m.statusMessage = "Export impossible : " + msg.err.Error()
		} else {
			m.statusMessage = "Plan exporté dans " + msg.path
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.ready = true

	m.textarea.SetWidth(width - 4)
	m.viewport.Width = width
	vh := height - headerHeight - footerHeight - inputHeight - errorHeight
	if vh < 3 {
		vh = 3
	}
	m.viewport.Height = vh
	m.list.SetSize(width, height-2)

	wrap := width - 8
	if wrap < 20 {
		wrap = 20
	}
	m.renderer = newRenderer(m.styles.Theme, wrap)
	m.cache.Clear()
	m.refresh(true)
}

// refresh re-renders the transcript into the viewport.
func (m *Model) refresh(bottom bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	if bottom {
		m.viewport.GotoBottom()
	}
}

// syncLiveWidget resets the cursor when a new widget instance appears and
// moves focus to it when it takes keys.
func (m *Model) syncLiveWidget() {
	e, ok := liveWidget(m.transcript.Entries())
	key := ""
	if ok {
		key = e.ID + e.CreatedAt.String()
	}
	if key == m.liveKey {
		return
	}
	m.liveKey = key
	m.cursor = 0
	if ok && widgetRenderers[e.Widget].keys != nil && m.inputMode == InputModeChat {
		m.focus = focusWidget
		m.textarea.Blur()
		return
	}
	m.focus = focusInput
	m.textarea.Focus()
}

func (m Model) handleOpDone(msg opDoneMsg) (tea.Model, tea.Cmd) {
	m.refresh(false)
	if msg.err != nil {
		if errors.Is(msg.err, wizard.ErrBusy) {
			m.statusMessage = "Une opération est déjà en cours..."
		} else {
			m.statusMessage = msg.err.Error()
		}
		return m, nil
	}
	m.statusMessage = ""

	switch msg.op {
	case "use_config", "create_config":
		return m, m.run("open_objectifs", m.wiz.OpenObjectifs)
	case "next_to_cibles":
		return m, m.run("open_cibles", m.wiz.OpenCibles)
	case "send", "trigger", "start", "generate_plan", "create_scenario", "batch_create":
		return m, m.loadScenarios()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if m.viewMode == ScenarioListView {
		switch msg.Type {
		case tea.KeyEsc:
			m.viewMode = ChatView
			return m, nil
		case tea.KeyEnter:
			if m.list.FilterState() != list.Filtering {
				if it, ok := m.list.SelectedItem().(scenarioItem); ok {
					m.viewMode = ChatView
					return m, m.startScenario(it.s.ID)
				}
			}
		}
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch msg.Type {
	case tea.KeyEsc:
		if m.inputMode != InputModeChat {
			m.cancelInput()
			return m, nil
		}
		if m.focus == focusWidget {
			m.focus = focusInput
			m.textarea.Focus()
			m.refresh(false)
		}
		return m, nil
	case tea.KeyTab:
		m.toggleFocus()
		return m, nil
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.focus == focusWidget {
		return m.handleWidgetKey(msg)
	}

	if msg.Type == tea.KeyEnter {
		text := m.textarea.Value()
		m.textarea.Reset()
		return m, m.submit(text)
	}
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m Model) handleWidgetKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	e, ok := liveWidget(m.transcript.Entries())
	if !ok {
		m.focus = focusInput
		m.textarea.Focus()
		return m, nil
	}
	h := widgetRenderers[e.Widget]

	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		m.refresh(false)
		return m, nil
	case "down", "j":
		if h.rows != nil && m.cursor < h.rows(&m)-1 {
			m.cursor++
		}
		m.refresh(false)
		return m, nil
	}

	if h.keys == nil {
		return m, nil
	}
	cmd := h.keys(&m, msg.String())
	m.refresh(false)
	return m, cmd
}

func (m *Model) toggleFocus() {
	if m.focus == focusWidget {
		m.focus = focusInput
		m.textarea.Focus()
		m.refresh(false)
		return
	}
	if e, ok := liveWidget(m.transcript.Entries()); ok && widgetRenderers[e.Widget].keys != nil {
		m.focus = focusWidget
		m.textarea.Blur()
		m.refresh(false)
	}
}

// askInput switches the input line to collect a value for a widget.
func (m *Model) askInput(mode InputMode, placeholder string) {
	m.inputMode = mode
	m.focus = focusInput
	m.textarea.Reset()
	m.textarea.Placeholder = placeholder + " (échap pour annuler)"
	m.textarea.Focus()
}

func (m *Model) cancelInput() {
	m.inputMode = InputModeChat
	m.textarea.Reset()
	m.textarea.Placeholder = "Décrivez votre projet, ou /aide pour les commandes"
	if e, ok := liveWidget(m.transcript.Entries()); ok && widgetRenderers[e.Widget].keys != nil {
		m.focus = focusWidget
		m.textarea.Blur()
	}
}

func (m *Model) setScenarioItems() {
	scenarios := m.registry.State().Scenarios
	items := make([]list.Item, len(scenarios))
	for i, s := range scenarios {
		items[i] = scenarioItem{s: s}
	}
	m.list.SetItems(items)
}

// system appends a system note to the transcript.
func (m *Model) system(text string) {
	m.transcript.Append(transcript.Text(transcript.AuthorSystem, text))
}

func (m Model) startScenario(id int64) tea.Cmd {
	m.log.Debug("start scenario", zap.Int64("scenario_id", id))
	return m.run("start", func(ctx context.Context) error { return m.wiz.Start(ctx, id) })
}

func formatSuggestions(ideas []types.ScenarioSuggestion) string {
	if len(ideas) == 0 {
		return "Aucune suggestion de scénario pour le moment."
	}
	out := "**Idées de scénarios** (adoptez-les avec `/adopter 1 2 ...`)\n\n"
	for i, s := range ideas {
		out += fmt.Sprintf("%d. **%s** (%s)", i+1, s.Nom, s.Thematique)
		if s.Description != "" {
			out += " : " + s.Description
		}
		out += "\n"
	}
	return out
}
