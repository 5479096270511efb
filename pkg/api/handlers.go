package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rubiojr/mithril/pkg/realtime"
	"github.com/rubiojr/mithril/pkg/version"
)

const writeTimeout = 10 * time.Second

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
		Sessions:  s.ActiveSessions(),
	}

	s.writeJSON(w, http.StatusOK, health)
}

// HandleWebSocket binds one search session to one websocket connection.
// Client messages drive the session; every session event is pushed back as
// a JSON frame.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, err := s.newSession()
	if err != nil {
		s.log.Errorf("creating session: %v", err)
		s.writeError(w, http.StatusInternalServerError, "session_error", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		s.log.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.active.Add(1)
	defer s.active.Add(-1)

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(InitMessage{Type: "init", SessionID: sess.ID}); err != nil {
		s.log.Warnf("writing init message: %v", err)
		return
	}

	_, events := sess.Subscribe()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = sess.Run(ctx)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.pushEvents(conn, events, cancel)
	}()

	s.log.Debugf("session %s connected from %s", sess.ID, r.RemoteAddr)
	s.readMessages(conn, sess)

	cancel()
	<-runDone
	<-writerDone
	s.log.Debugf("session %s disconnected", sess.ID)
}

type submitter interface {
	Submit(query string)
	SubmitNow(query string)
	RequestSnippets(ids []string)
}

func (s *Server) readMessages(conn *websocket.Conn, sess submitter) {
	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				s.log.Debugf("websocket read: %v", err)
			}
			return
		}
		switch msg.Type {
		case MessageSearch:
			sess.Submit(msg.Q)
		case MessageSubmit:
			sess.SubmitNow(msg.Q)
		case MessageSnippets:
			sess.RequestSnippets(msg.IDs)
		default:
			s.log.Warnf("ignoring unknown message type %q", msg.Type)
		}
	}
}

// pushEvents is the only writer on conn after the init frame.
func (s *Server) pushEvents(conn *websocket.Conn, events <-chan realtime.Event, cancel context.CancelFunc) {
	for ev := range events {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			s.log.Debugf("websocket write: %v", err)
			cancel()
			conn.Close()
			// Drain until the session closes the subscription.
			for range events {
			}
			return
		}
	}
}
