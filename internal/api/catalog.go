package api

import (
	"context"
	"net/http"

	"stratege/internal/types"
)

// ListObjectifs returns the global objective catalog.
func (c *Client) ListObjectifs(ctx context.Context) ([]types.Objectif, error) {
	var out struct {
		Objectifs []types.Objectif `json:"objectifs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/objectifs", nil, &out); err != nil {
		return nil, err
	}
	return out.Objectifs, nil
}

// CreateObjectif adds an objective to the catalog. An existing objective
// with the same label is returned instead of a duplicate.
func (c *Client) CreateObjectif(ctx context.Context, o types.Objectif) (*types.Objectif, error) {
	body := struct {
		Label       string `json:"label"`
		Description string `json:"description,omitempty"`
	}{o.Label, o.Description}
	var out types.Objectif
	if err := c.do(ctx, http.MethodPost, "/api/objectifs", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCibles returns the global target catalog.
func (c *Client) ListCibles(ctx context.Context) ([]types.Cible, error) {
	var out struct {
		Cibles []types.Cible `json:"cibles"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/cibles", nil, &out); err != nil {
		return nil, err
	}
	return out.Cibles, nil
}

// CreateCible adds a target to the catalog.
func (c *Client) CreateCible(ctx context.Context, t types.Cible) (*types.Cible, error) {
	body := struct {
		Label    string         `json:"label"`
		Persona  string         `json:"persona,omitempty"`
		Segment  string         `json:"segment,omitempty"`
		Maturite types.Maturity `json:"maturite,omitempty"`
	}{t.Label, t.Persona, t.Segment, t.Maturite}
	var out types.Cible
	if err := c.do(ctx, http.MethodPost, "/api/cibles", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat sends a free-form chat turn.
func (c *Client) Chat(ctx context.Context, req types.ChatRequest) (*types.ChatResponse, error) {
	var out types.ChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
