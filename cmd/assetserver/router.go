package main

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"canister-assets/internal/assetstate"
)

// server holds the shared state every handler needs.
type server struct {
	state           *assetstate.State
	log             *logrus.Entry
	insecureDevMode bool
}

func (s *server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logMiddleware)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/batches", s.handleCreateBatch)
		api.Post("/chunks", s.handleCreateChunk)
		api.Post("/commit", s.handleCommitBatch)
		api.Get("/list", s.handleList)
		api.Get("/properties/{key}", s.handleGetProperties)
	})

	r.Get("/ws/batches/{id}", s.handleBatchProgress)

	// The certified responder is mounted last so it only sees requests
	// that did not match a more specific API route above.
	r.NotFound(s.handleAssetRequest)

	return r
}
