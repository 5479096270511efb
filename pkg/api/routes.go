package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.HandleWebSocket)
	mux.HandleFunc("GET /health", s.HandleHealth)
}
