package core

import (
	"time"

	"telfs/config"
	"telfs/internal/metrics"
	"telfs/internal/transport"
	"telfs/util"
)

// keepAlive is the TCP keep-alive period for client sockets.
const keepAlive = 30 * time.Second

// Build constructs the server Mode from cfg.  cfg must already have
// passed Validate; the root directory is opened by Run, not here, so a
// dry run never touches the filesystem.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	return &ServeMode{
		Address:       cfg.Address(),
		Listener:      &transport.TCPListener{KeepAlive: keepAlive},
		Root:          cfg.Root,
		CreateRoot:    cfg.CreateRoot,
		Workers:       cfg.Workers,
		QueueDepth:    cfg.QueueDepth,
		MaxLineLength: cfg.MaxLineLength,
		CommandRate:   cfg.CommandRate,
		CommandBurst:  cfg.CommandBurst,
		IdleTimeout:   cfg.IdleTimeout,
		WriteTimeout:  cfg.WriteTimeout,
		GracePeriod:   config.DefaultGracePeriod,
		Metrics:       metrics.New(),
		Logger:        logger,
	}, nil
}
