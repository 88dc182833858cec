package api

import (
	"context"
	"errors"
	"sync"

	"github.com/thruflo/serverboard/internal/logging"
	"github.com/thruflo/serverboard/internal/servers"
)

// ErrorMessage is the user-facing text for a failed server list load.
const ErrorMessage = "Error loading servers"

// ErrNoToken is reported when a load is attempted without a session.
var ErrNoToken = errors.New("not logged in")

// TokenSource supplies the current bearer token.
type TokenSource interface {
	Token() (string, bool)
}

// Status is the state of a Fetcher.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusError
	StatusSuccess
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	case StatusSuccess:
		return "success"
	}
	return "unknown"
}

// Snapshot is a point-in-time view of a Fetcher. Servers is non-nil only when
// Status is StatusSuccess (it may be empty).
type Snapshot struct {
	Status  Status
	Servers []servers.Server
	Err     error
}

// Fetcher loads the server list and tracks loading, error and success
// states for views.
type Fetcher struct {
	client *Client
	tokens TokenSource

	mu        sync.Mutex
	snap      Snapshot
	gen       uint64
	listeners []*fetchListener
	nextID    int
}

type fetchListener struct {
	id int
	fn func(Snapshot)
}

// NewFetcher returns an idle Fetcher. It panics if client or tokens is nil.
func NewFetcher(client *Client, tokens TokenSource) *Fetcher {
	if client == nil || tokens == nil {
		panic("api: NewFetcher requires a client and a token source")
	}
	return &Fetcher{client: client, tokens: tokens}
}

// Snapshot returns the current state.
func (f *Fetcher) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

// Subscribe registers fn to receive every state change. The returned function
// removes it.
func (f *Fetcher) Subscribe(fn func(Snapshot)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.listeners = append(f.listeners, &fetchListener{id: id, fn: fn})
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, l := range f.listeners {
			if l.id == id {
				f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
				return
			}
		}
	}
}

// Load fetches the server list, moving through StatusLoading to either
// StatusSuccess or StatusError. If another Load starts before this one
// finishes, this one's result is dropped. The returned snapshot is the state
// this call settled on.
func (f *Fetcher) Load(ctx context.Context) Snapshot {
	log := logging.With("component", "fetcher")

	f.mu.Lock()
	f.gen++
	gen := f.gen
	f.snap = Snapshot{Status: StatusLoading}
	f.mu.Unlock()
	f.notify()

	var (
		list []servers.Server
		err  error
	)
	token, ok := f.tokens.Token()
	if !ok {
		err = ErrNoToken
	} else {
		list, err = f.client.Servers(ctx, token)
	}

	f.mu.Lock()
	if gen != f.gen {
		snap := f.snap
		f.mu.Unlock()
		log.Debug("dropping stale server list result")
		return snap
	}
	if err != nil {
		log.Warn("server list load failed", "error", err)
		f.snap = Snapshot{Status: StatusError, Err: err}
	} else {
		log.Debug("server list loaded", "count", len(list))
		f.snap = Snapshot{Status: StatusSuccess, Servers: list}
	}
	snap := f.snap
	f.mu.Unlock()
	f.notify()

	return snap
}

// Retry re-issues the same request as Load.
func (f *Fetcher) Retry(ctx context.Context) Snapshot {
	return f.Load(ctx)
}

// Reset returns the fetcher to StatusIdle, discarding any in-flight result.
func (f *Fetcher) Reset() {
	f.mu.Lock()
	f.gen++
	f.snap = Snapshot{}
	f.mu.Unlock()
	f.notify()
}

func (f *Fetcher) notify() {
	f.mu.Lock()
	snap := f.snap
	listeners := make([]*fetchListener, len(f.listeners))
	copy(listeners, f.listeners)
	f.mu.Unlock()

	for _, l := range listeners {
		l.fn(snap)
	}
}
