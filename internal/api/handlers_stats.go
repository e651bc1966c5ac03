package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"queue_depth":    s.queue.QueueDepth(),
		"max_queue_size": s.cfg.MaxQueueSize,
		"jobs":           s.queue.JobCount(),
		"worker_count":   s.cfg.WorkerCount,
	})
}
