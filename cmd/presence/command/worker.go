package command

import (
	"context"
	"fmt"

	"github.com/pixil98/go-presence/internal/driver"
	"github.com/pixil98/go-presence/internal/messaging"
	"github.com/pixil98/go-presence/internal/presence"
	"github.com/pixil98/go-service"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	ctx := context.Background()

	pluginManager, err := cfg.Plugins.buildPluginManager(ctx)
	if err != nil {
		return nil, fmt.Errorf("registering plugins: %w", err)
	}

	db, err := cfg.Storage.buildDatabase(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	geoCache, err := cfg.Geolocation.buildGeoCache()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating geolocation cache: %w", err)
	}

	retry, err := cfg.LeaveRetry.consumerOpt()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configuring leave retry: %w", err)
	}

	// The subsystem owns the database from here on and closes it on shutdown
	subsystem := presence.NewSubsystem(
		cfg.Executor.buildExecutor(db),
		geoCache,
		retry,
		presence.WithDefaultServer(cfg.ServerID, cfg.ServerName),
		presence.WithSessionHook(pluginManager),
	)

	natsServer, err := cfg.Nats.buildNatsServer()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	d := driver.NewDriver([]driver.Manager{
		driver.NewSessionRefresher(subsystem.Caches().Sessions),
		pluginManager,
	}, driver.WithTickLength(cfg.tickLength()))

	return service.WorkerList{
		"presence":   subsystem,
		"nats":       natsServer,
		"subscriber": messaging.NewSubscriber(natsServer, subsystem.Consumer()),
		"driver":     d,
	}, nil
}
