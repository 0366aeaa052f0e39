// cmd/assetserver - HTTP front end for the certified asset state machine
// -----------------------------------------------------------------------------
// Exposes the mutating batch/chunk/commit API the sync engine drives, a
// read-only inventory API used for diffing, a websocket batch-progress
// stream, and the certified http_request responder itself, mounted at "/*"
// so it behaves like the canister it stands in for.
// -----------------------------------------------------------------------------

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"canister-assets/internal/assetstate"
	"canister-assets/pkg/config"
)

func main() {
	env := flag.String("env", "", "config environment overlay to merge over default.yaml")
	listenAddr := flag.String("listen", "", "override the configured listen address")
	persist := flag.Bool("persist", false, "load/save state from the configured bbolt path across restarts")
	insecureDevMode := flag.Bool("insecure-dev-mode", false, "recorded in the server config; the server adds no security-policy headers of its own, so responses are unchanged")
	apex := flag.String("apex", "", "raw-domain apex used for raw-access redirects (e.g. ic0.app)")
	flag.Parse()

	cfg, err := config.Load(*env)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if *persist {
		cfg.Server.Persist = true
	}
	if *insecureDevMode {
		cfg.Server.InsecureDevMode = true
	}

	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(level)
	}
	entry := log.WithField("component", "assetserver")

	state := assetstate.New(entry)
	for _, principal := range cfg.Auth.AuthorizedPrincipals {
		state.Authorize(principal)
	}
	if *apex != "" {
		state.SetApex(*apex)
	}

	if cfg.Server.Persist {
		if err := state.RestoreFrom(cfg.Server.StatePath); err != nil {
			log.Warnf("restore state from %s: %v", cfg.Server.StatePath, err)
		}
	}

	srv := &server{
		state:           state,
		log:             entry,
		insecureDevMode: cfg.Server.InsecureDevMode,
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: srv.router(),
	}

	go func() {
		log.Infof("assetserver listening on %s", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	if cfg.Server.Persist {
		if err := state.PersistTo(cfg.Server.StatePath); err != nil {
			log.Errorf("persist state to %s: %v", cfg.Server.StatePath, err)
		}
	}
	fmt.Println("assetserver: shutting down")
}
