package serverinfo

import (
	"context"
	"fmt"

	"github.com/pixil98/go-presence/internal/plugins"
	"github.com/pixil98/go-presence/internal/storage"
)

const (
	ExtKey = "server"
)

// Plugin attaches the profile of the server a session runs on.
type Plugin struct {
	path     string
	profiles storage.Storer[*Profile]
}

func New(path string) *Plugin {
	return &Plugin{path: path}
}

func (p *Plugin) Key() string {
	return ExtKey
}

func (p *Plugin) Init(ctx context.Context) error {
	s, err := storage.NewFileStore[*Profile](p.path)
	if err != nil {
		return fmt.Errorf("loading server profiles: %w", err)
	}
	p.profiles = s
	return nil
}

func (p *Plugin) OnSessionStart(ctx context.Context, s plugins.Session) error {
	profile, ok := p.profiles.Get(s.ServerID())
	if !ok {
		return nil
	}
	return s.SetExtension(ExtKey, profile)
}
