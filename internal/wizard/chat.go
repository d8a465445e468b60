package wizard

import (
	"context"
	"errors"
	"maps"
	"strings"

	"go.uber.org/zap"

	"stratege/internal/logging"
	"stratege/internal/transcript"
	"stratege/internal/types"
)

// ErrEmptyMessage is returned by Send for blank input.
var ErrEmptyMessage = errors.New("message is empty")

// Send posts a free-form chat turn. The user message is appended right away.
// A failed turn adds nothing else to the transcript: the error is kept in
// State.Err. A reply carrying a scenario makes it the selected one.
func (w *Wizard) Send(ctx context.Context, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return ErrEmptyMessage
	}
	return w.turn(ctx, types.ChatRequest{Message: message})
}

// Trigger runs a quick action proposed by a previous reply. The action
// label is what shows as the user's message.
func (w *Wizard) Trigger(ctx context.Context, action types.ChatAction) error {
	return w.turn(ctx, types.ChatRequest{
		Message: action.Label,
		Action:  action.Action,
		Payload: maps.Clone(action.Payload),
	})
}

func (w *Wizard) turn(ctx context.Context, req types.ChatRequest) error {
	if err := w.acquire(); err != nil {
		return err
	}
	defer w.release()

	if sel := w.registry.Selected(); sel != nil {
		req.ScenarioID = sel.ID
	}

	user := transcript.Text(transcript.AuthorUser, req.Message)
	user.ScenarioID = req.ScenarioID
	w.transcript.Append(user)

	w.mu.Lock()
	w.thinking = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.thinking = false
		w.mu.Unlock()
	}()

	resp, err := w.chat.Chat(ctx, req)
	if err != nil {
		w.log.Warn("chat turn failed", zap.String("action", req.Action), zap.Error(err))
		w.setErr(err)
		return err
	}

	scenarioID := req.ScenarioID
	if resp.Scenario != nil {
		scenarioID = resp.Scenario.ID
		w.registry.SetSelected(resp.Scenario)
		if _, err := w.registry.List(ctx); err != nil {
			logging.NonFatal(w.log, "refresh scenario list after chat", err)
		}
		w.mu.Lock()
		if w.step == Idle {
			w.step = ScenarioChosen
			w.scenarioID = resp.Scenario.ID
		}
		w.mu.Unlock()
	}

	w.mu.Lock()
	w.actions = resp.Actions
	w.mu.Unlock()

	reply := transcript.Text(transcript.AuthorAssistant, resp.Message)
	reply.ScenarioID = scenarioID
	w.transcript.Append(reply)
	return nil
}
