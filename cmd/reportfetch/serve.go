package main

import (
	"github.com/urfave/cli/v2"

	"github.com/adamwoolhether/reportfetch"
	"github.com/adamwoolhether/reportfetch/web/gateway"
	"github.com/adamwoolhether/reportfetch/web/server"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the download gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: gateway.addr from config)",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}

	endpoint, err := reportfetch.Endpoint(rt.cfg)
	if err != nil {
		return cli.Exit(err, exitUsage)
	}

	app, err := gateway.New(gateway.Config{
		Client:      rt.client,
		Endpoint:    endpoint,
		Logger:      rt.logger,
		CORSOrigins: rt.cfg.Gateway.CORSOrigins,
		Options:     reportfetch.DownloaderOptions(rt.cfg, rt.logger),
	})
	if err != nil {
		return cli.Exit(err, exitUsage)
	}

	addr := rt.cfg.Gateway.Addr
	if a := c.String("addr"); a != "" {
		addr = a
	}

	srv := server.New(app,
		server.WithHost(addr),
		server.WithReadTimeout(rt.cfg.Gateway.ReadTimeout),
		server.WithShutdownTimeout(rt.cfg.Gateway.ShutdownTimeout),
		server.WithLogger(rt.logger),
	)

	if err := srv.Run(c.Context); err != nil {
		return cli.Exit(err, exitFailure)
	}

	return nil
}
