package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"stratege/internal/types"
)

const helpText = `**Commandes**

- ` + "`/scenarios`" + ` ouvrir la liste des scénarios (entrée pour démarrer)
- ` + "`/start <id>`" + ` démarrer la stratégie d'un scénario
- ` + "`/creer Nom | Thématique | Description`" + ` créer un scénario
- ` + "`/suggerer`" + ` proposer des idées de scénarios
- ` + "`/adopter 1 3`" + ` créer les idées choisies
- ` + "`/action <n>`" + ` lancer une action proposée par l'assistant
- ` + "`/nouveau`" + ` recommencer une nouvelle stratégie
- ` + "`/quitter`" + ` quitter

**Touches** : tab bascule entre le message et le widget actif, ↑/↓ pour naviguer, pgup/pgdown pour défiler.`

// submit handles an input line according to the current input mode.
func (m *Model) submit(text string) tea.Cmd {
	text = strings.TrimSpace(text)
	mode := m.inputMode
	if mode != InputModeChat {
		m.cancelInput()
	}
	if text == "" {
		return nil
	}

	switch mode {
	case InputModeConfigName:
		return m.run("create_config", func(ctx context.Context) error { return m.wiz.CreateConfiguration(ctx, text) })
	case InputModeCustomObjectif:
		return m.run("create_objectif", func(ctx context.Context) error {
			return m.wiz.CreateObjectif(ctx, types.Objectif{Label: text})
		})
	case InputModeCustomCible:
		return m.run("create_cible", func(ctx context.Context) error {
			return m.wiz.CreateCible(ctx, types.Cible{Label: text})
		})
	}

	if strings.HasPrefix(text, "/") {
		return m.command(text)
	}
	return m.run("send", func(ctx context.Context) error { return m.wiz.Send(ctx, text) })
}

// command runs a slash command.
func (m *Model) command(line string) tea.Cmd {
	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch name {
	case "/aide", "/help":
		m.system(helpText)
	case "/quitter", "/quit", "/exit":
		return tea.Quit
	case "/scenarios":
		m.setScenarioItems()
		m.viewMode = ScenarioListView
		return m.loadScenarios()
	case "/start", "/demarrer":
		id, err := parseID(args)
		if err != nil {
			m.statusMessage = err.Error()
			return nil
		}
		return m.startScenario(id)
	case "/nouveau", "/new":
		return m.run("new_strategy", func(context.Context) error { return m.wiz.NewStrategy() })
	case "/creer", "/create":
		in, err := parseScenarioInput(rest)
		if err != nil {
			m.statusMessage = err.Error()
			return nil
		}
		return m.run("create_scenario", func(ctx context.Context) error {
			_, err := m.registry.Create(ctx, in)
			return err
		})
	case "/suggerer", "/suggest":
		ctx, reg := m.ctx, m.registry
		return func() tea.Msg {
			ideas, err := reg.SuggestNew(ctx)
			return suggestionsMsg{list: ideas, err: err}
		}
	case "/adopter", "/adopt":
		chosen, err := pick(m.suggestions, args)
		if err != nil {
			m.statusMessage = err.Error()
			return nil
		}
		return m.run("batch_create", func(ctx context.Context) error {
			res, err := m.registry.BatchCreate(ctx, chosen)
			if err != nil {
				return err
			}
			m.log.Info("scenarios adopted", zap.Int("count", res.Count))
			return nil
		})
	case "/action":
		actions := m.wiz.State().Actions
		n, err := parseIndex(args, len(actions))
		if err != nil {
			m.statusMessage = err.Error()
			return nil
		}
		action := actions[n]
		return m.run("trigger", func(ctx context.Context) error { return m.wiz.Trigger(ctx, action) })
	default:
		m.statusMessage = fmt.Sprintf("Commande inconnue %s, tapez /aide", name)
	}
	return nil
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("usage : /start <id>")
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("identifiant invalide : %s", args[0])
	}
	return id, nil
}

// parseIndex reads a 1-based index below n.
func parseIndex(args []string, n int) (int, error) {
	if n == 0 {
		return 0, fmt.Errorf("aucune action disponible")
	}
	if len(args) != 1 {
		return 0, fmt.Errorf("usage : /action <1-%d>", n)
	}
	i, err := strconv.Atoi(args[0])
	if err != nil || i < 1 || i > n {
		return 0, fmt.Errorf("action invalide : %s", args[0])
	}
	return i - 1, nil
}

func parseScenarioInput(rest string) (types.ScenarioInput, error) {
	parts := strings.Split(rest, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 2 {
		return types.ScenarioInput{}, fmt.Errorf("usage : /creer Nom | Thématique | Description")
	}
	in := types.ScenarioInput{Nom: parts[0], Thematique: parts[1]}
	if len(parts) > 2 {
		in.Description = strings.Join(parts[2:], " | ")
	}
	return in, in.Validate()
}

func pick(ideas []types.ScenarioSuggestion, args []string) ([]types.ScenarioSuggestion, error) {
	if len(ideas) == 0 {
		return nil, fmt.Errorf("lancez d'abord /suggerer")
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("usage : /adopter 1 2 ...")
	}
	out := make([]types.ScenarioSuggestion, 0, len(args))
	for _, a := range args {
		i, err := strconv.Atoi(a)
		if err != nil || i < 1 || i > len(ideas) {
			return nil, fmt.Errorf("idée invalide : %s", a)
		}
		out = append(out, ideas[i-1])
	}
	return out, nil
}
