package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/GriffinCanCode/shmbus/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/shmbus/internal/infrastructure/server"
)

func runServe(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("serve")
	fs.StringVar(&a.cfg.Server.Host, "host", a.cfg.Server.Host, "listen host")
	fs.StringVar(&a.cfg.Server.Port, "port", a.cfg.Server.Port, "listen port")
	fs.IntVar(&a.cfg.Server.RateLimit, "rps", a.cfg.Server.RateLimit, "requests per second per client (0 disables)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if !a.cfg.Server.Enabled {
		return errors.New("status endpoint disabled by SHMBUS_HTTP_ENABLED")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := server.NewServer(a.cfg, server.Options{
		Logger:   a.logger,
		Metrics:  monitoring.NewMetrics(reg),
		Gatherer: reg,
	})
	return srv.Run(ctx)
}
