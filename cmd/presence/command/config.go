package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-presence/internal/driver"
)

type Config struct {
	ServerID     string            `json:"server_id"`
	ServerName   string            `json:"server_name"`
	TickInterval string            `json:"tick_interval"`
	Storage      StorageConfig     `json:"storage"`
	Nats         NatsConfig        `json:"nats"`
	Geolocation  GeolocationConfig `json:"geolocation"`
	LeaveRetry   LeaveRetryConfig  `json:"leave_retry"`
	Executor     ExecutorConfig    `json:"executor"`
	Plugins      PluginsConfig     `json:"plugins"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	if c.TickInterval != "" {
		d, err := time.ParseDuration(c.TickInterval)
		if err != nil {
			el.Add(fmt.Errorf("parsing tick_interval: %w", err))
		} else if d < time.Second {
			el.Add(fmt.Errorf("tick_interval must be at least 1 second"))
		}
	}

	el.Add(c.Storage.validate())
	el.Add(c.Nats.validate())
	el.Add(c.Geolocation.validate())
	el.Add(c.LeaveRetry.validate())
	el.Add(c.Executor.validate())
	el.Add(c.Plugins.validate())

	return el.Err()
}

func (c *Config) tickLength() time.Duration {
	if c.TickInterval == "" {
		return driver.DefaultTickLength
	}
	d, err := time.ParseDuration(c.TickInterval)
	if err != nil {
		return driver.DefaultTickLength
	}
	return d
}
