package store

import (
	"context"

	"stratege/internal/logging"
	"stratege/internal/transcript"
)

// Record archives every entry appended to t under a new session. Removals
// and resets are not recorded: the archive is the full history of what was
// shown. Write failures never reach the chat; they are logged. Call the
// returned stop function to detach.
func (a *Archive) Record(ctx context.Context, t *transcript.Transcript, label, apiURL string) (sessionID string, stop func(), err error) {
	sessionID, err = a.BeginSession(ctx, label, apiURL)
	if err != nil {
		return "", nil, err
	}
	unsubscribe := t.Subscribe(func(ev transcript.Event) {
		if ev.Type != transcript.EventAppended {
			return
		}
		logging.NonFatal(a.log, "archive turn", a.AppendTurn(ctx, sessionID, ev.Entry))
	})
	return sessionID, unsubscribe, nil
}
