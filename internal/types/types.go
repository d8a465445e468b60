// Package types holds the data model shared by the API client, the state
// containers and the wizard: scenarios, configurations, objectives (objectifs),
// targets (cibles) and generated plans.
//
// JSON tags follow the backend wire format, which keeps the French field names.
package types

import "fmt"

// Selection caps for a configuration.
const (
	MaxObjectifs = 2
	MaxCibles    = 3
)

// ScenarioStatus is the lifecycle status of a scenario.
type ScenarioStatus string

const (
	StatusDraft ScenarioStatus = "draft"
	StatusReady ScenarioStatus = "ready"
)

// Maturity is the funnel stage of a target.
type Maturity string

const (
	MaturityAwareness     Maturity = "awareness"
	MaturityConsideration Maturity = "consideration"
	MaturityDecision      Maturity = "decision"
)

// ScenarioSummary is the list representation of a scenario.
type ScenarioSummary struct {
	ID          int64          `json:"id"`
	Nom         string         `json:"nom"`
	Thematique  string         `json:"thematique"`
	Description string         `json:"description,omitempty"`
	Statut      ScenarioStatus `json:"statut"`
	CreatedAt   Timestamp      `json:"created_at"`
	UpdatedAt   Timestamp      `json:"updated_at"`
}

// ScenarioDetail is a scenario with its nested configurations.
type ScenarioDetail struct {
	ScenarioSummary
	Configurations []ConfigurationDetail `json:"configurations"`
}

// ScenarioInput carries the fields needed to create a scenario.
type ScenarioInput struct {
	Nom         string `json:"nom"`
	Thematique  string `json:"thematique"`
	Description string `json:"description,omitempty"`
}

// Validate checks the required fields.
func (in ScenarioInput) Validate() error {
	if in.Nom == "" {
		return fmt.Errorf("nom is required")
	}
	if in.Thematique == "" {
		return fmt.Errorf("thematique is required")
	}
	return nil
}

// ScenarioSuggestion is an AI-proposed scenario idea.
type ScenarioSuggestion struct {
	Nom         string `json:"nom"`
	Thematique  string `json:"thematique"`
	Description string `json:"description"`
}

// BatchCreateResult is returned by the batch scenario creation endpoint.
type BatchCreateResult struct {
	Count     int               `json:"count"`
	Scenarios []ScenarioSummary `json:"scenarios"`
}

// Configuration is one strategic variant of a scenario.
type Configuration struct {
	ID         int64     `json:"id"`
	ScenarioID int64     `json:"scenario_id"`
	Nom        string    `json:"nom"`
	CreatedAt  Timestamp `json:"created_at"`
	UpdatedAt  Timestamp `json:"updated_at"`
}

// ConfigurationDetail is a configuration with its objectives, targets and plans.
type ConfigurationDetail struct {
	Configuration
	Objectifs []Objectif `json:"objectifs"`
	Cibles    []Cible    `json:"cibles"`
	Plans     []Plan     `json:"plans"`
}

// Objectif is a marketing goal. ID is zero for AI suggestions that were
// never persisted.
type Objectif struct {
	ID          int64  `json:"id,omitempty"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Saved reports whether the objective has a backend identity.
func (o Objectif) Saved() bool { return o.ID != 0 }

// Cible is a target persona or segment. ID is zero for unsaved suggestions.
type Cible struct {
	ID       int64    `json:"id,omitempty"`
	Label    string   `json:"label"`
	Persona  string   `json:"persona,omitempty"`
	Segment  string   `json:"segment,omitempty"`
	Maturite Maturity `json:"maturite,omitempty"`
}

// Saved reports whether the target has a backend identity.
func (c Cible) Saved() bool { return c.ID != 0 }

// PlanItem is one diffusion action of a plan.
type PlanItem struct {
	ID        int64  `json:"id"`
	Format    string `json:"format"`
	Message   string `json:"message"`
	Canal     string `json:"canal"`
	Frequence string `json:"frequence,omitempty"`
	KPI       string `json:"kpi,omitempty"`
}

// Article is a generated article idea.
type Article struct {
	ID     int64  `json:"id"`
	Nom    string `json:"nom"`
	Resume string `json:"resume,omitempty"`
}

// Plan is a generated content plan. Plans are immutable once generated.
type Plan struct {
	ID          int64      `json:"id"`
	Resume      string     `json:"resume,omitempty"`
	GeneratedAt Timestamp  `json:"generated_at"`
	Items       []PlanItem `json:"items"`
	Articles    []Article  `json:"articles"`
}

// GeneratedPlan is the response of the plan generation endpoint.
type GeneratedPlan struct {
	PlanID   int64     `json:"plan_id"`
	Resume   string    `json:"resume,omitempty"`
	Articles []Article `json:"articles"`
}
