package types

// ChatAction is a quick action proposed by the assistant after a chat turn.
type ChatAction struct {
	Label   string         `json:"label"`
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ChatRequest is the body of a free-form chat turn.
type ChatRequest struct {
	Message    string         `json:"message"`
	ScenarioID int64          `json:"scenario_id,omitempty"`
	Action     string         `json:"action,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// ChatResponse is the assistant reply to a chat turn.
type ChatResponse struct {
	Message  string          `json:"message"`
	Actions  []ChatAction    `json:"actions"`
	Scenario *ScenarioDetail `json:"scenario,omitempty"`
}
