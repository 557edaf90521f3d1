// Package server runs the gateway's HTTP listener.
//
// Run blocks until its context ends or the process receives SIGINT or
// SIGTERM, then stops accepting requests and lets in-flight downloads
// finish within the shutdown timeout:
//
//	srv := server.New(app,
//		server.WithHost(cfg.Gateway.Addr),
//		server.WithShutdownTimeout(cfg.Gateway.ShutdownTimeout),
//	)
//	if err := srv.Run(ctx); err != nil {
//		return err
//	}
package server
