package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeClient records every event pushed to it, standing in for a live
// websocket connection.
type fakeClient struct {
	id   string
	name string

	mu     sync.Mutex
	events []fakeEvent
	fail   bool
}

type fakeEvent struct {
	Event   string
	Payload interface{}
}

func newFakeClient(id, name string) *fakeClient {
	return &fakeClient{id: id, name: name}
}

func (f *fakeClient) UserID() string   { return f.id }
func (f *fakeClient) Username() string { return f.name }

func (f *fakeClient) Send(event string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return ErrNotConnected
	}
	f.events = append(f.events, fakeEvent{Event: event, Payload: payload})
	return nil
}

// received returns the payloads of every recorded event with the given name.
func (f *fakeClient) received(event string) []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []interface{}
	for _, e := range f.events {
		if e.Event == event {
			out = append(out, e.Payload)
		}
	}
	return out
}

func (f *fakeClient) receivedCount(event string) int {
	return len(f.received(event))
}

// fakeTokenServer serves the token-service contract: one opaque credential
// per requested username, or a fixed error status.
func fakeTokenServer(t *testing.T, failStatus int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failStatus != 0 {
			w.WriteHeader(failStatus)
			return
		}
		tokens := make(map[string]string)
		for _, name := range strings.Split(r.URL.Query().Get("usernames"), ",") {
			tokens[name] = "lk-token-" + name
		}
		json.NewEncoder(w).Encode(tokens)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newTestService wires a full matchmaking service over the in-memory store.
func newTestService(t *testing.T, tokenURL string, expire time.Duration) (*MatchmakingService, *Registry) {
	t.Helper()
	registry := NewRegistry()
	notifier := &RegistryNotifier{Registry: registry, Logger: zerolog.Nop()}
	ms := NewMatchmakingService(
		NewMemoryStore(),
		registry,
		notifier,
		NewTokenClient(tokenURL),
		expire,
		zerolog.Nop(),
	)
	return ms, registry
}

// connect registers a fresh fake client as an authenticated connection.
func connect(ms *MatchmakingService, id, name string) *fakeClient {
	c := newFakeClient(id, name)
	ms.HandleConnect(c)
	return c
}
