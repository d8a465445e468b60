// Package chat provides the interactive TUI for stratege. The transcript is
// rendered top to bottom: text entries as markdown, widget entries through
// the widgetRenderers table. The last widget in the transcript is the live
// one and receives keys when focused.
package chat

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"stratege/cmd/stratege/ui"
	"stratege/internal/configuration"
	"stratege/internal/progress"
	"stratege/internal/scenario"
	"stratege/internal/transcript"
	"stratege/internal/types"
	"stratege/internal/wizard"
)

// Config holds what the chat needs. Wizard, Registry, Session, Progress and
// Transcript must be the same instances the wizard was built with.
type Config struct {
	Wizard     *wizard.Wizard
	Registry   *scenario.Registry
	Session    *configuration.Session
	Progress   *progress.Tracker
	Transcript *transcript.Transcript
	Styles     ui.Styles
	Cache      *ui.RenderCache
	Log        *zap.Logger
	UserName   string
	ExportDir  string
}

// ViewMode determines which component is shown
type ViewMode int

const (
	ChatView ViewMode = iota
	ScenarioListView
)

// focusArea says who receives keys in ChatView.
type focusArea int

const (
	focusInput focusArea = iota
	focusWidget
)

// InputMode says what a submitted line means.
type InputMode int

const (
	InputModeChat           InputMode = iota // chat message or /command
	InputModeConfigName                      // name of a new configuration
	InputModeCustomObjectif                  // label of a custom objective
	InputModeCustomCible                     // label of a custom target
)

// Messages produced by commands.
type (
	opDoneMsg struct {
		op  string
		err error
	}
	transcriptMsg   struct{}
	scenariosMsg    struct{ err error }
	suggestionsMsg  struct {
		list []types.ScenarioSuggestion
		err  error
	}
	exportMsg struct {
		path string
		err  error
	}
)

// scenarioItem is a list item for the scenario picker
type scenarioItem struct {
	s types.ScenarioSummary
}

func (i scenarioItem) Title() string { return fmt.Sprintf("#%d %s", i.s.ID, i.s.Nom) }
func (i scenarioItem) Description() string {
	return fmt.Sprintf("%s · %s", i.s.Thematique, i.s.Statut)
}
func (i scenarioItem) FilterValue() string { return i.s.Nom + " " + i.s.Thematique }

// Model is the bubbletea model.
type Model struct {
	ctx        context.Context
	wiz        *wizard.Wizard
	registry   *scenario.Registry
	session    *configuration.Session
	progress   *progress.Tracker
	transcript *transcript.Transcript
	log        *zap.Logger

	styles   ui.Styles
	cache    *ui.RenderCache
	renderer *glamour.TermRenderer

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	list     list.Model

	width, height int
	ready         bool

	viewMode  ViewMode
	focus     focusArea
	inputMode InputMode
	cursor    int
	// liveKey identifies the live widget instance so the cursor resets when
	// a new one appears.
	liveKey string

	statusMessage string
	suggestions   []types.ScenarioSuggestion
	userName      string
	exportDir     string

	events      chan struct{}
	unsubscribe func()
}

// New creates the chat model and subscribes it to the transcript. Call
// Close when the program exits.
func New(ctx context.Context, cfg Config) Model {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	cache := cfg.Cache
	if cache == nil {
		cache = ui.NewRenderCache(0)
	}

	ta := textarea.New()
	ta.Placeholder = "Décrivez votre projet, ou /aide pour les commandes"
	ta.Prompt = "┃ "
	ta.CharLimit = 2000
	ta.SetHeight(2)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = cfg.Styles.Spinner

	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Scénarios"
	l.SetShowHelp(false)

	vp := viewport.New(80, 20)

	userName := cfg.UserName
	if userName == "" {
		userName = "Vous"
	}

	m := Model{
		ctx:        ctx,
		wiz:        cfg.Wizard,
		registry:   cfg.Registry,
		session:    cfg.Session,
		progress:   cfg.Progress,
		transcript: cfg.Transcript,
		log:        log,
		styles:     cfg.Styles,
		cache:      cache,
		viewport:   vp,
		textarea:   ta,
		spinner:    sp,
		list:       l,
		userName:   userName,
		exportDir:  cfg.ExportDir,
		events:     make(chan struct{}, 1),
	}
	m.renderer = newRenderer(cfg.Styles.Theme, 76)

	events := m.events
	m.unsubscribe = cfg.Transcript.Subscribe(func(transcript.Event) {
		// Coalesce: one pending signal is enough to trigger a redraw.
		select {
		case events <- struct{}{}:
		default:
		}
	})
	return m
}

func newRenderer(theme ui.Theme, wrap int) *glamour.TermRenderer {
	style := "light"
	if theme.IsDark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return nil
	}
	return r
}

// Close detaches the model from the transcript.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, m.waitForTranscript(), m.loadScenarios())
}

// waitForTranscript blocks until the transcript changes.
func (m Model) waitForTranscript() tea.Cmd {
	events := m.events
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case <-events:
			return transcriptMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

// run executes a wizard operation off the UI goroutine.
func (m Model) run(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	log := m.log
	return func() tea.Msg {
		err := fn(ctx)
		if err != nil {
			log.Debug("operation failed", zap.String("op", op), zap.Error(err))
		}
		return opDoneMsg{op: op, err: err}
	}
}

func (m Model) loadScenarios() tea.Cmd {
	ctx := m.ctx
	reg := m.registry
	return func() tea.Msg {
		_, err := reg.List(ctx)
		return scenariosMsg{err: err}
	}
}
