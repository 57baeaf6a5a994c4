package tui

import (
	"fmt"

	"walletunity/pkg/config"
	"walletunity/pkg/tracker"
	"walletunity/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
)

func Start(w *watcher.Watcher, t *tracker.Tracker, cfg config.Config, configPath, version string) error {
	Version = version
	m := initialModel(w, t, cfg, configPath)
	m.sub = w.Hub().Subscribe()
	defer w.Hub().Unsubscribe(m.sub)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("alas, there's been an error: %w", err)
	}
	return nil
}
