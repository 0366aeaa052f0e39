package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type batchProgressMessage struct {
	BatchID    uint64 `json:"batch_id"`
	Exists     bool   `json:"exists"`
	ExpiresIn  string `json:"expires_in,omitempty"`
	ChunkCount int    `json:"chunk_count"`
}

// handleBatchProgress streams the status of one batch until it is
// committed or expires, polling the state machine at a fixed interval
// since BatchStatus is a cheap read-only call.
func (s *server) handleBatchProgress(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	batchID, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil {
		http.Error(w, "invalid batch id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		exists, expiresAt, chunkCount := s.state.BatchStatus(batchID)
		msg := batchProgressMessage{BatchID: batchID, Exists: exists, ChunkCount: chunkCount}
		if exists {
			msg.ExpiresIn = time.Until(expiresAt).Truncate(time.Second).String()
		}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
		if !exists {
			return
		}

		select {
		case <-ticker.C:
		case <-r.Context().Done():
			return
		}
	}
}
