package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"stratege/cmd/stratege/ui"
	"stratege/internal/progress"
	"stratege/internal/transcript"
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initialisation..."
	}
	if m.viewMode == ScenarioListView {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.list.View(),
			m.styles.Footer.Render("entrée démarrer · / filtrer · échap retour"),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderErrorLine(),
		m.textarea.View(),
		m.renderFooter(),
	)
}

func (m Model) renderTranscript() string {
	entries := m.transcript.Entries()
	if len(entries) == 0 {
		return m.styles.Subtitle.Render("\n  Bienvenue ! Tapez /scenarios pour choisir un scénario, ou décrivez votre projet.")
	}
	live, hasLive := liveWidget(entries)

	var sb strings.Builder
	for _, e := range entries {
		switch e.Kind {
		case transcript.KindWidget:
			h, ok := widgetRenderers[e.Widget]
			if !ok {
				sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("[widget %s]", e.Widget)))
				sb.WriteString("\n\n")
				continue
			}
			isLive := hasLive && e.ID == live.ID && e.CreatedAt.Equal(live.CreatedAt)
			sb.WriteString(h.render(&m, e, isLive))
			sb.WriteString("\n\n")
		default:
			sb.WriteString(m.renderText(e))
		}
	}
	if m.wiz.State().Thinking {
		sb.WriteString(m.spinner.View() + " " + m.styles.Muted.Render("L'assistant réfléchit..."))
	}
	return sb.String()
}

func (m Model) renderText(e transcript.Entry) string {
	switch e.Author {
	case transcript.AuthorUser:
		label := m.styles.Bold.Foreground(m.styles.Theme.Primary).Render(m.userName)
		return label + "\n" + m.styles.UserMessage.Render(e.Text) + "\n\n"
	case transcript.AuthorSystem:
		return m.styles.Muted.Render(m.markdown(e)) + "\n"
	default:
		label := m.styles.Bold.Foreground(m.styles.Theme.Accent).Render("Stratège")
		return label + "\n" + m.styles.AssistantMessage.Render(strings.TrimSpace(m.markdown(e))) + "\n\n"
	}
}

// markdown renders an entry's text through glamour, cached per entry and
// width.
func (m Model) markdown(e transcript.Entry) string {
	key := ui.ComputeKey(e.ID, e.Text, m.width, m.styles.Theme.Name)
	return m.cache.GetOrCompute(key, func() string { return m.safeRenderMarkdown(e.Text) })
}

// safeRenderMarkdown renders markdown with panic recovery
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()
	if m.renderer != nil && content != "" {
		if rendered, err := m.renderer.Render(content); err == nil {
			return rendered
		}
	}
	return content
}

func (m Model) renderHeader() string {
	title := m.styles.Header.Render(" stratège ")

	scenario := m.styles.Muted.Render(" aucun scénario")
	if sel := m.registry.Selected(); sel != nil {
		scenario = " " + m.styles.Bold.Render(sel.Nom) + m.styles.Muted.Render(" · "+sel.Thematique)
	}

	var status string
	if ws := m.wiz.State(); ws.Busy || m.session.State().Loading {
		status = m.spinner.View() + " " + m.styles.Badge.Render("En cours")
	} else {
		status = m.styles.Success.Render("Prêt")
	}

	top := lipgloss.JoinHorizontal(lipgloss.Center, title, scenario, "  ", status)
	return lipgloss.JoinVertical(lipgloss.Left,
		top,
		m.renderSteps(m.progress.State()),
		m.styles.RenderDivider(m.width),
	)
}

// renderSteps draws the four-step indicator.
func (m Model) renderSteps(st progress.State) string {
	parts := make([]string, len(progress.StepLabels))
	for i, label := range progress.StepLabels {
		text := fmt.Sprintf("%d %s", i+1, label)
		switch i {
		case progress.StepObjectifs:
			text += fmt.Sprintf(" (%d)", st.ObjectifsCount)
		case progress.StepCibles:
			text += fmt.Sprintf(" (%d)", st.CiblesCount)
		}
		switch {
		case st.Completed(i):
			parts[i] = m.styles.StepDone.Render("✓ " + text)
		case i == st.CurrentStep:
			parts[i] = m.styles.StepActive.Render(text)
		default:
			parts[i] = m.styles.StepPending.Render(text)
		}
	}
	return " " + strings.Join(parts, m.styles.Muted.Render(" ─ "))
}

func (m Model) renderErrorLine() string {
	msg := m.statusMessage
	if msg == "" {
		msg = m.wiz.State().Err
	}
	if msg == "" {
		return ""
	}
	return m.styles.Error.Render(" " + msg)
}

func (m Model) renderFooter() string {
	var hints []string
	switch m.inputMode {
	case InputModeConfigName, InputModeCustomObjectif, InputModeCustomCible:
		hints = append(hints, "entrée valider", "échap annuler")
	default:
		if m.focus == focusWidget {
			hints = append(hints, "tab message")
		} else {
			hints = append(hints, "entrée envoyer", "tab widget")
		}
	}
	for i, a := range m.wiz.State().Actions {
		hints = append(hints, fmt.Sprintf("/action %d %s", i+1, a.Label))
	}
	hints = append(hints, "/aide", "ctrl+c quitter")
	return m.styles.Footer.Render(strings.Join(hints, " · "))
}
