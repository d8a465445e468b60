// Package main implements the scenario, configuration and export commands.
// They talk to the backend directly, without the wizard.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stratege/internal/api"
	"stratege/internal/configuration"
	"stratege/internal/logging"
	"stratege/internal/scenario"
	"stratege/internal/types"
)

// =============================================================================
// SCENARIO COMMANDS
// =============================================================================

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Manage marketing scenarios",
	RunE:  runScenariosList,
}

var scenariosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all scenarios",
	RunE:  runScenariosList,
}

var scenariosCreateCmd = &cobra.Command{
	Use:   "create <nom> <thematique> [description]",
	Short: "Create a scenario",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runScenariosCreate,
}

var scenariosDeleteCmd = &cobra.Command{
	Use:   "delete <scenario-id>",
	Short: "Delete a scenario and its configurations",
	Args:  cobra.ExactArgs(1),
	RunE:  runScenariosDelete,
}

var scenariosSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Ask the assistant for scenario ideas",
	Long: `Lists AI-proposed scenario ideas. With --adopt, the chosen ideas
(1-based, comma separated) are created in one batch.

Example:
  stratege scenarios suggest --adopt 1,3`,
	RunE: runScenariosSuggest,
}

var configurationsCmd = &cobra.Command{
	Use:   "configurations <scenario-id>",
	Short: "List the configurations of a scenario",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigurationsList,
}

var configurationsDeleteCmd = &cobra.Command{
	Use:   "delete <config-id>",
	Short: "Delete a configuration and its plans",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigurationsDelete,
}

var exportCmd = &cobra.Command{
	Use:   "export <scenario-id>",
	Short: "Export a scenario's latest plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var (
	adoptIdeas   string
	exportFormat string
	exportOutput string
)

func init() {
	scenariosSuggestCmd.Flags().StringVar(&adoptIdeas, "adopt", "", "Ideas to create, e.g. 1,3")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Export format: json or csv")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")

	scenariosCmd.AddCommand(scenariosListCmd)
	scenariosCmd.AddCommand(scenariosCreateCmd)
	scenariosCmd.AddCommand(scenariosDeleteCmd)
	scenariosCmd.AddCommand(scenariosSuggestCmd)

	configurationsCmd.AddCommand(configurationsDeleteCmd)
}

// newRegistry builds a scenario registry on the configured backend.
func newRegistry() (*scenario.Registry, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	return scenario.New(client, logs.Get(logging.CategoryScenario)), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func parseScenarioID(arg string) (int64, error) {
	return parseID("scenario", arg)
}

func parseID(kind, arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, arg)
	}
	return id, nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}

func runScenariosList(cmd *cobra.Command, args []string) error {
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	list, err := reg.List(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list scenarios: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No scenarios yet. Create one with `stratege scenarios create`.")
		return nil
	}
	t := newTable("ID", "NOM", "THÉMATIQUE", "STATUT", "MIS À JOUR")
	for _, s := range list {
		t.Row(strconv.FormatInt(s.ID, 10), s.Nom, s.Thematique, string(s.Statut), s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(out, t.Render())
	return nil
}

func runScenariosCreate(cmd *cobra.Command, args []string) error {
	in := types.ScenarioInput{Nom: args[0], Thematique: args[1]}
	if len(args) == 3 {
		in.Description = args[2]
	}
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	d, err := reg.Create(commandContext(cmd), in)
	if err != nil {
		return fmt.Errorf("failed to create scenario: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created scenario #%d %s\n", d.ID, d.Nom)
	return nil
}

func runScenariosDelete(cmd *cobra.Command, args []string) error {
	id, err := parseScenarioID(args[0])
	if err != nil {
		return err
	}
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	if err := reg.Delete(commandContext(cmd), id); err != nil {
		return fmt.Errorf("failed to delete scenario %d: %w", id, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted scenario #%d\n", id)
	return nil
}

func runScenariosSuggest(cmd *cobra.Command, args []string) error {
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	ideas, err := reg.SuggestNew(ctx)
	if err != nil {
		return fmt.Errorf("failed to suggest scenarios: %w", err)
	}

	out := cmd.OutOrStdout()
	if adoptIdeas == "" {
		printSuggestions(out, ideas)
		return nil
	}

	chosen, err := chooseIdeas(ideas, adoptIdeas)
	if err != nil {
		return err
	}
	res, err := reg.BatchCreate(ctx, chosen)
	if err != nil {
		return fmt.Errorf("failed to create scenarios: %w", err)
	}
	logs.Get(logging.CategoryScenario).Debug("ideas adopted", zap.Int("count", res.Count))
	fmt.Fprintf(out, "Created %d scenario(s)\n", res.Count)
	for _, s := range res.Scenarios {
		fmt.Fprintf(out, "  #%d %s\n", s.ID, s.Nom)
	}
	return nil
}

func printSuggestions(w io.Writer, ideas []types.ScenarioSuggestion) {
	if len(ideas) == 0 {
		fmt.Fprintln(w, "No suggestions right now.")
		return
	}
	for i, s := range ideas {
		fmt.Fprintf(w, "%d. %s (%s)\n", i+1, s.Nom, s.Thematique)
		if s.Description != "" {
			fmt.Fprintf(w, "   %s\n", s.Description)
		}
	}
}

// chooseIdeas resolves a comma separated list of 1-based indexes.
func chooseIdeas(ideas []types.ScenarioSuggestion, list string) ([]types.ScenarioSuggestion, error) {
	var out []types.ScenarioSuggestion
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		i, err := strconv.Atoi(part)
		if err != nil || i < 1 || i > len(ideas) {
			return nil, fmt.Errorf("invalid idea %q (1-%d)", part, len(ideas))
		}
		out = append(out, ideas[i-1])
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no idea selected")
	}
	return out, nil
}

func runConfigurationsList(cmd *cobra.Command, args []string) error {
	id, err := parseScenarioID(args[0])
	if err != nil {
		return err
	}
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	d, err := reg.Select(commandContext(cmd), id)
	if err != nil {
		return fmt.Errorf("failed to load scenario %d: %w", id, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "#%d %s (%s)\n", d.ID, d.Nom, d.Statut)
	if len(d.Configurations) == 0 {
		fmt.Fprintln(out, "No configurations.")
		return nil
	}
	t := newTable("ID", "NOM", "OBJECTIFS", "CIBLES", "PLANS")
	for _, c := range d.Configurations {
		t.Row(strconv.FormatInt(c.ID, 10), c.Nom,
			joinLabels(c.Objectifs, func(o types.Objectif) string { return o.Label }),
			joinLabels(c.Cibles, func(t types.Cible) string { return t.Label }),
			strconv.Itoa(len(c.Plans)))
	}
	fmt.Fprintln(out, t.Render())

	for _, c := range d.Configurations {
		if len(c.Plans) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s\n", c.Nom)
		printPlan(out, c.Plans[len(c.Plans)-1])
	}
	return nil
}

// printPlan prints a plan header and its action items. Plans are listed
// oldest first, so callers pass the last one for the latest.
func printPlan(w io.Writer, p types.Plan) {
	fmt.Fprintf(w, "Plan #%d du %s • %d actions • %d articles\n",
		p.ID, p.GeneratedAt.Format("2006-01-02 15:04"), len(p.Items), len(p.Articles))
	if p.Resume != "" {
		fmt.Fprintln(w, p.Resume)
	}
	if len(p.Items) == 0 {
		return
	}
	t := newTable("CANAL", "FORMAT", "MESSAGE", "FRÉQUENCE", "KPI")
	for _, it := range p.Items {
		t.Row(it.Canal, it.Format, it.Message, orDash(it.Frequence), orDash(it.KPI))
	}
	fmt.Fprintln(w, t.Render())
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func runConfigurationsDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID("configuration", args[0])
	if err != nil {
		return err
	}
	client, err := newClient()
	if err != nil {
		return err
	}
	session := configuration.New(client, logs.Get(logging.CategorySession))
	if err := session.DeleteConfiguration(commandContext(cmd), id); err != nil {
		return fmt.Errorf("failed to delete configuration %d: %w", id, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted configuration #%d\n", id)
	return nil
}

func joinLabels[T any](items []T, label func(T) string) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = label(it)
	}
	return strings.Join(parts, ", ")
}

func runExport(cmd *cobra.Command, args []string) error {
	id, err := parseScenarioID(args[0])
	if err != nil {
		return err
	}
	format, err := api.ParseExportFormat(exportFormat)
	if err != nil {
		return err
	}
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	data, err := reg.Export(commandContext(cmd), id, format)
	if err != nil {
		return fmt.Errorf("failed to export scenario %d: %w", id, err)
	}

	if exportOutput == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(exportOutput, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOutput, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", exportOutput)
	return nil
}
