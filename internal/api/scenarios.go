package api

import (
	"context"
	"fmt"
	"net/http"

	"stratege/internal/types"
)

// ExportFormat selects the export representation.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

// ParseExportFormat validates a user-supplied format name.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case ExportJSON, ExportCSV:
		return ExportFormat(s), nil
	}
	return "", fmt.Errorf("unknown export format %q (valid: json, csv)", s)
}

// ListScenarios returns every scenario summary.
func (c *Client) ListScenarios(ctx context.Context) ([]types.ScenarioSummary, error) {
	var out []types.ScenarioSummary
	if err := c.do(ctx, http.MethodGet, "/api/scenarios", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateScenario persists a new scenario.
func (c *Client) CreateScenario(ctx context.Context, in types.ScenarioInput) (*types.ScenarioSummary, error) {
	var out types.ScenarioSummary
	if err := c.do(ctx, http.MethodPost, "/api/scenarios", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetScenario fetches a scenario with its nested configurations.
func (c *Client) GetScenario(ctx context.Context, id int64) (*types.ScenarioDetail, error) {
	var out types.ScenarioDetail
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/scenarios/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteScenario deletes a scenario and returns the backend confirmation.
func (c *Client) DeleteScenario(ctx context.Context, id int64) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/scenarios/%d", id), nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// SuggestScenarios asks the AI for new scenario ideas.
func (c *Client) SuggestScenarios(ctx context.Context) ([]types.ScenarioSuggestion, error) {
	var out struct {
		Suggestions []types.ScenarioSuggestion `json:"suggestions"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/scenarios/suggest-new", nil, &out); err != nil {
		return nil, err
	}
	return out.Suggestions, nil
}

// BatchCreateScenarios creates several scenarios at once.
func (c *Client) BatchCreateScenarios(ctx context.Context, in []types.ScenarioSuggestion) (*types.BatchCreateResult, error) {
	body := struct {
		Scenarios []types.ScenarioSuggestion `json:"scenarios"`
	}{Scenarios: in}
	var out types.BatchCreateResult
	if err := c.do(ctx, http.MethodPost, "/api/scenarios/batch-create", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportScenario downloads a scenario export as raw bytes.
func (c *Client) ExportScenario(ctx context.Context, id int64, format ExportFormat) ([]byte, error) {
	if _, err := ParseExportFormat(string(format)); err != nil {
		return nil, err
	}
	return c.send(ctx, http.MethodGet, fmt.Sprintf("/api/scenarios/%d/export/%s", id, format), nil)
}
