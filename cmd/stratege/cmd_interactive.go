package main

import (
	"context"
	"fmt"
	"os"
	"os/user"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stratege/cmd/stratege/chat"
	"stratege/cmd/stratege/ui"
	"stratege/internal/api"
	"stratege/internal/config"
	"stratege/internal/configuration"
	"stratege/internal/logging"
	"stratege/internal/progress"
	"stratege/internal/scenario"
	"stratege/internal/store"
	"stratege/internal/transcript"
	"stratege/internal/wizard"
)

// app bundles the state containers shared by the wizard and the chat.
type app struct {
	client     *api.Client
	registry   *scenario.Registry
	session    *configuration.Session
	progress   *progress.Tracker
	transcript *transcript.Transcript
	wizard     *wizard.Wizard
}

// newApp wires the containers around one backend client. The wizard must
// see the same instances as the UI.
func newApp(client *api.Client, logs *logging.Logger) *app {
	a := &app{
		client:     client,
		registry:   scenario.New(client, logs.Get(logging.CategoryScenario)),
		session:    configuration.New(client, logs.Get(logging.CategorySession)),
		progress:   progress.New(),
		transcript: transcript.New(),
	}
	a.wizard = wizard.New(wizard.Deps{
		Registry:   a.registry,
		Session:    a.session,
		Progress:   a.progress,
		Transcript: a.transcript,
		Chat:       client,
		Log:        logs.Get(logging.CategoryWizard),
	})
	return a
}

// runInteractiveChat starts the TUI.
func runInteractiveChat(cmd *cobra.Command) error {
	ctx, cancel := signalContext()
	defer cancel()
	boot := logs.Get(logging.CategoryBoot)

	client, err := newClient()
	if err != nil {
		return err
	}
	a := newApp(client, logs)

	if cfg.Store.Enabled {
		stop, err := startArchive(ctx, a.transcript, boot)
		if err != nil {
			// The chat works without history.
			logging.NonFatal(boot, "open session archive", err)
		} else {
			defer stop()
		}
	}

	stopWatch := watchConfig(ctx, boot)
	defer stopWatch()

	exportDir, _ := os.Getwd()
	model := chat.New(ctx, chat.Config{
		Wizard:     a.wizard,
		Registry:   a.registry,
		Session:    a.session,
		Progress:   a.progress,
		Transcript: a.transcript,
		Styles:     ui.NewStyles(ui.ThemeByName(cfg.UI.Theme)),
		Cache:      ui.NewRenderCache(cfg.UI.RenderCacheMax),
		Log:        logs.Get(logging.CategoryUI),
		UserName:   displayName(cfg.UI.UserName),
		ExportDir:  exportDir,
	})
	defer model.Close()

	boot.Info("starting interactive chat", zap.String("api_url", cfg.API.BaseURL))
	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	return nil
}

// startArchive records the transcript into the local archive. The returned
// function detaches the recorder and closes the database.
func startArchive(ctx context.Context, t *transcript.Transcript, log *zap.Logger) (func(), error) {
	archive, err := store.Open(cfg.Store.DatabasePath, logs.Get(logging.CategoryStore))
	if err != nil {
		return nil, err
	}
	label := fmt.Sprintf("chat %s", cfg.API.BaseURL)
	id, detach, err := archive.Record(ctx, t, label, cfg.API.BaseURL)
	if err != nil {
		_ = archive.Close()
		return nil, err
	}
	log.Debug("recording session", zap.String("session_id", id))
	return func() {
		detach()
		logging.NonFatal(log, "close session archive", archive.Close())
	}, nil
}

// watchConfig applies logging changes from the config file while the chat
// runs. Other settings need a restart.
func watchConfig(ctx context.Context, log *zap.Logger) func() {
	if _, err := os.Stat(configPath); err != nil {
		return func() {}
	}
	w, err := config.NewWatcher(configPath, log, func(next *config.Config) {
		if err := next.Logging.Validate(); err != nil {
			logging.NonFatal(log, "reload config", err)
			return
		}
		level := next.Logging.Level
		if verbose {
			level = "debug"
		}
		logging.NonFatal(log, "apply log level", logs.SetLevel(level))
		logs.SetCategories(next.Logging.Categories)
		log.Info("configuration reloaded", zap.String("level", level))
	})
	if err != nil {
		logging.NonFatal(log, "watch config", err)
		return func() {}
	}
	if err := w.Start(ctx); err != nil {
		logging.NonFatal(log, "watch config", err)
		w.Stop()
		return func() {}
	}
	return w.Stop
}

// displayName resolves the label shown above the user's messages.
func displayName(configured string) string {
	if configured != "" {
		return configured
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return ""
}
