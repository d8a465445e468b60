package api

import (
	"context"
	"fmt"
	"net/http"

	"stratege/internal/types"
)

// ListConfigurations returns the configurations of a scenario.
func (c *Client) ListConfigurations(ctx context.Context, scenarioID int64) ([]types.Configuration, error) {
	var out []types.Configuration
	path := fmt.Sprintf("/api/scenarios/%d/configurations", scenarioID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateConfiguration adds a configuration to a scenario.
func (c *Client) CreateConfiguration(ctx context.Context, scenarioID int64, nom string) (*types.Configuration, error) {
	body := struct {
		Nom string `json:"nom"`
	}{Nom: nom}
	var out types.Configuration
	path := fmt.Sprintf("/api/scenarios/%d/configurations", scenarioID)
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConfiguration fetches a configuration with objectives, targets and plans.
func (c *Client) GetConfiguration(ctx context.Context, id int64) (*types.ConfigurationDetail, error) {
	var out types.ConfigurationDetail
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/configurations/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConfiguration deletes a configuration.
func (c *Client) DeleteConfiguration(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/configurations/%d", id), nil, nil)
}

// AddObjectif links an objective to a configuration by label, creating it in
// the catalog when needed. The updated configuration is returned.
func (c *Client) AddObjectif(ctx context.Context, configID int64, o types.Objectif) (*types.ConfigurationDetail, error) {
	body := struct {
		Label       string `json:"label"`
		Description string `json:"description,omitempty"`
	}{o.Label, o.Description}
	var out types.ConfigurationDetail
	path := fmt.Sprintf("/api/configurations/%d/objectifs", configID)
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddCible links a target to a configuration by label.
func (c *Client) AddCible(ctx context.Context, configID int64, t types.Cible) (*types.ConfigurationDetail, error) {
	body := struct {
		Label    string         `json:"label"`
		Persona  string         `json:"persona,omitempty"`
		Segment  string         `json:"segment,omitempty"`
		Maturite types.Maturity `json:"maturite,omitempty"`
	}{t.Label, t.Persona, t.Segment, t.Maturite}
	var out types.ConfigurationDetail
	path := fmt.Sprintf("/api/configurations/%d/cibles", configID)
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveObjectif unlinks an objective from a configuration.
func (c *Client) RemoveObjectif(ctx context.Context, configID, objectifID int64) error {
	path := fmt.Sprintf("/api/configurations/%d/objectifs/%d", configID, objectifID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// RemoveCible unlinks a target from a configuration.
func (c *Client) RemoveCible(ctx context.Context, configID, cibleID int64) error {
	path := fmt.Sprintf("/api/configurations/%d/cibles/%d", configID, cibleID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// SuggestObjectifs asks the AI for objectives suited to a configuration.
// Suggestions carry no id.
func (c *Client) SuggestObjectifs(ctx context.Context, configID int64) ([]types.Objectif, error) {
	var out struct {
		Objectifs []types.Objectif `json:"objectifs"`
	}
	path := fmt.Sprintf("/api/configurations/%d/suggest-objectifs", configID)
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Objectifs, nil
}

// SuggestCibles asks the AI for targets suited to a configuration.
func (c *Client) SuggestCibles(ctx context.Context, configID int64) ([]types.Cible, error) {
	var out struct {
		Cibles []types.Cible `json:"cibles"`
	}
	path := fmt.Sprintf("/api/configurations/%d/suggest-cibles", configID)
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Cibles, nil
}

// CanCreatePlan reports whether the configuration has enough objectives and
// targets for plan generation.
func (c *Client) CanCreatePlan(ctx context.Context, configID int64) (bool, error) {
	var out struct {
		CanCreatePlan bool `json:"can_create_plan"`
	}
	path := fmt.Sprintf("/api/configurations/%d/can-create-plan", configID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return false, err
	}
	return out.CanCreatePlan, nil
}

// GeneratePlan generates a content plan with its articles.
func (c *Client) GeneratePlan(ctx context.Context, configID int64) (*types.GeneratedPlan, error) {
	var out types.GeneratedPlan
	path := fmt.Sprintf("/api/configurations/%d/generate-plan", configID)
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
