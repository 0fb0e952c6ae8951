// Package server wires the terminal host together.
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Initialize logger, metrics and tracing
//  3. Open the state store when STATE_DIR is set
//  4. Build the session registry, context sender and handlers
//  5. Setup HTTP routes and middleware
//  6. Warm start persisted projects
//  7. Serve until shutdown, then persist and stop every session
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go srv.Run()
//	defer srv.Close(context.Background())
package server
