package api

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/rubiojr/mithril/pkg/log"
	"github.com/rubiojr/mithril/pkg/session"
)

// SessionFactory builds a fresh session for a new websocket connection.
type SessionFactory func() (*session.Session, error)

type Server struct {
	newSession SessionFactory
	upgrader   websocket.Upgrader
	active     atomic.Int64
	log        *log.Logger
}

func NewServer(factory SessionFactory) *Server {
	return &Server{
		newSession: factory,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The bridge is meant for local pages served from any origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log.ForService("api"),
	}
}

// ActiveSessions returns the number of open websocket sessions.
func (s *Server) ActiveSessions() int {
	return int(s.active.Load())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Error encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
