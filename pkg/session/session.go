// Package session is the query lifecycle engine of the search client.
//
// A Session glues together the result cache, the remote search API and the
// presentation layer. Presentation code submits raw input with Submit and
// renders whatever arrives on the channel returned by Subscribe:
//
//	s := session.New(apiClient, store, session.Options{})
//	go s.Run(ctx)
//	_, events := s.Subscribe()
//	s.Submit("golang generics")
//	for ev := range events {
//		switch ev.Type {
//		case realtime.TypeResultsReady:
//			// render ev.Groups
//		case realtime.TypeSnippetReady:
//			// patch ev.DocID with ev.Snippet
//		}
//	}
//
// Submissions are debounced, identical queries inside the cache TTL are
// served from the cache, and a new query cancels the snippet stream of the
// previous one.
package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/rubiojr/mithril/pkg/cache"
	"github.com/rubiojr/mithril/pkg/kv"
	"github.com/rubiojr/mithril/pkg/log"
	"github.com/rubiojr/mithril/pkg/mathexpr"
	"github.com/rubiojr/mithril/pkg/realtime"
)

// Options configures a Session.
type Options struct {
	Cache      cache.Options
	Controller ControllerOptions
	// EventBuffer is the per-subscriber channel size.
	EventBuffer int
	// Evaluator overrides the math shortcut; nil uses mathexpr.
	Evaluator Evaluator
	// DisableMath turns the math shortcut off.
	DisableMath bool
}

// Session is one search session bound to a durable store.
type Session struct {
	ID         string
	cache      *cache.ResultCache
	controller *Controller
	hub        *realtime.Hub
	log        *log.Logger
}

// New creates a session and restores the cache snapshot from store. A nil
// store keeps the cache in memory.
func New(searcher Searcher, store kv.Store, opts Options) *Session {
	s := &Session{
		ID:  uuid.NewString(),
		hub: realtime.NewHub(opts.EventBuffer),
		log: log.ForService("session"),
	}

	s.cache = cache.New(store, opts.Cache)
	s.cache.LoadFromStorage()

	var eval Evaluator
	if !opts.DisableMath {
		eval = opts.Evaluator
		if eval == nil {
			eval = mathexpr.Evaluator{}
		}
	}
	s.controller = NewController(s.cache, searcher, eval, s.publish, opts.Controller)
	s.log.Debugf("session %s ready with %d cached queries", s.ID, s.cache.Len())
	return s
}

func (s *Session) publish(ev realtime.Event) {
	ev.SessionID = s.ID
	if dropped := s.hub.Broadcast(ev); dropped > 0 {
		s.log.Warnf("%d subscribers missed a %s event", dropped, ev.Type)
	}
}

// Run drives the session until ctx is cancelled, then closes all
// subscriptions.
func (s *Session) Run(ctx context.Context) error {
	defer s.hub.Close()
	return s.controller.Run(ctx)
}

// Subscribe returns a channel receiving every event of this session.
func (s *Session) Subscribe() (uint64, <-chan realtime.Event) {
	return s.hub.Register()
}

// Unsubscribe releases a subscription.
func (s *Session) Unsubscribe(id uint64) {
	s.hub.Unregister(id)
}

// Submit registers user input (a form submit or an example click).
func (s *Session) Submit(query string) {
	s.controller.Submit(query)
}

// SubmitNow dispatches query without waiting for the debounce delay.
func (s *Session) SubmitNow(query string) {
	s.controller.SubmitNow(query)
}

// RequestSnippets asks for improved snippets of the given documents.
func (s *Session) RequestSnippets(ids []string) {
	s.controller.RequestSnippets(ids)
}

// State returns the controller state.
func (s *Session) State() State {
	return s.controller.State()
}

// Cache exposes the session cache for management commands.
func (s *Session) Cache() *cache.ResultCache {
	return s.cache
}
