package plugins

import (
	"context"
	"fmt"
	"log/slog"
)

// Session is the view of an active session plugins may decorate.
type Session interface {
	UserID() string
	ServerID() string
	SetExtension(string, any) error
	GetExtension(string, any) (bool, error)
}

type Plugin interface {
	Key() string
	Init(context.Context) error
	OnSessionStart(context.Context, Session) error
}

// Ticker is implemented by plugins with periodic work.
type Ticker interface {
	Tick(context.Context) error
}

type PluginManager struct {
	plugins []Plugin
}

func NewPluginManager() *PluginManager {
	return &PluginManager{plugins: []Plugin{}}
}

func (m *PluginManager) Register(ctx context.Context, p Plugin) error {
	if p == nil {
		return fmt.Errorf("plugin is nil")
	}

	if err := p.Init(ctx); err != nil {
		return fmt.Errorf("initializing %s: %w", p.Key(), err)
	}

	m.plugins = append(m.plugins, p)
	slog.InfoContext(ctx, "registered plugin", "key", p.Key())

	return nil
}

func (m *PluginManager) Tick(ctx context.Context) error {
	for _, p := range m.plugins {
		t, ok := p.(Ticker)
		if !ok {
			continue
		}
		if err := t.Tick(ctx); err != nil {
			return fmt.Errorf("ticking %s: %w", p.Key(), err)
		}
	}

	return nil
}

// SessionStarted lets every plugin decorate a new session. A failing plugin
// is logged and skipped.
func (m *PluginManager) SessionStarted(ctx context.Context, s Session) {
	for _, p := range m.plugins {
		if err := p.OnSessionStart(ctx, s); err != nil {
			slog.WarnContext(ctx, "plugin failed on session start", "key", p.Key(), "user", s.UserID(), "error", err)
		}
	}
}
