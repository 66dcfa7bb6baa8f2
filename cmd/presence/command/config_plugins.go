package command

import (
	"context"
	"fmt"
	"os"

	"github.com/pixil98/go-presence/internal/plugins"
	"github.com/pixil98/go-presence/internal/plugins/serverinfo"
)

type PluginsConfig struct {
	ServerProfiles string `json:"server_profiles,omitempty"`
}

func (c *PluginsConfig) validate() error {
	if c.ServerProfiles == "" {
		return nil
	}
	if _, err := os.Stat(c.ServerProfiles); err != nil {
		return fmt.Errorf("plugins: invalid server_profiles path %q: %w", c.ServerProfiles, err)
	}
	return nil
}

func (c *PluginsConfig) buildPluginManager(ctx context.Context) (*plugins.PluginManager, error) {
	m := plugins.NewPluginManager()
	if c.ServerProfiles != "" {
		if err := m.Register(ctx, serverinfo.New(c.ServerProfiles)); err != nil {
			return nil, err
		}
	}
	return m, nil
}
