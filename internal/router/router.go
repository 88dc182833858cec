// Package router maps locations to views and keeps unauthenticated users
// out of protected ones.
//
// The router follows both the navigation history and the auth session:
// whenever either changes it re-resolves the current location, replacing it
// in place when a redirect applies. Subscribers hear about view changes
// synchronously, so a logout is reflected before Logout returns.
package router

import (
	"net/url"
	"sync"

	"github.com/thruflo/serverboard/internal/logging"
	"github.com/thruflo/serverboard/internal/nav"
)

// Route paths.
const (
	PathLogin     = "/login"
	PathDashboard = "/dashboard"
)

// View is the screen a location resolves to.
type View int

const (
	ViewLogin View = iota
	ViewDashboard
)

func (v View) String() string {
	switch v {
	case ViewLogin:
		return "login"
	case ViewDashboard:
		return "dashboard"
	}
	return "unknown"
}

// AuthState is the part of the auth manager the router needs.
type AuthState interface {
	IsAuthorized() bool
	Subscribe(fn func(authorized bool)) (unsubscribe func())
}

// Resolve decides which view path shows and the canonical path for it. When
// target differs from path the location should be replaced with target.
//
//	/login      public; authorized users go to /dashboard
//	/dashboard  protected; unauthorized users go to /login
//	anything    goes to /dashboard
func Resolve(path string, authorized bool) (view View, target string) {
	switch path {
	case PathLogin:
		if authorized {
			return ViewDashboard, PathDashboard
		}
		return ViewLogin, PathLogin
	case PathDashboard:
		if !authorized {
			return ViewLogin, PathLogin
		}
		return ViewDashboard, PathDashboard
	}
	return Resolve(PathDashboard, authorized)
}

// Router binds a History to an AuthState.
type Router struct {
	history *nav.History
	auth    AuthState
	log     *logging.Logger

	mu        sync.Mutex
	view      View
	listeners []viewListener
	nextID    int

	unsubscribe []func()
}

type viewListener struct {
	id int
	fn func(View)
}

// New resolves the current location immediately and then tracks changes
// until Close. It panics if history or auth is nil.
func New(history *nav.History, auth AuthState) *Router {
	if history == nil || auth == nil {
		panic("router: New requires a history and an auth state")
	}

	r := &Router{
		history: history,
		auth:    auth,
		log:     logging.With("component", "router"),
	}
	r.view, _ = Resolve(history.Current().Path, auth.IsAuthorized())

	r.unsubscribe = append(r.unsubscribe,
		history.Subscribe(func(*url.URL) { r.settle() }),
		auth.Subscribe(func(bool) { r.settle() }),
	)
	r.settle()
	return r
}

// Close stops tracking history and auth changes.
func (r *Router) Close() {
	for _, fn := range r.unsubscribe {
		fn()
	}
	r.unsubscribe = nil
}

// View returns the view for the current location.
func (r *Router) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Location returns a copy of the current location.
func (r *Router) Location() *url.URL {
	return r.history.Current()
}

// History returns the history the router follows.
func (r *Router) History() *nav.History {
	return r.history
}

// Resolve decides the view for path under the current session without
// navigating.
func (r *Router) Resolve(path string) View {
	view, _ := Resolve(path, r.auth.IsAuthorized())
	return view
}

// Navigate pushes link onto the history and returns the view it settled on.
// Redirects replace the pushed entry rather than adding another.
func (r *Router) Navigate(link string) (View, error) {
	u, err := nav.ParseLink(link)
	if err != nil {
		return r.View(), err
	}
	r.history.Push(u)
	return r.View(), nil
}

// Subscribe registers fn to hear every view change. The returned function
// removes it.
func (r *Router) Subscribe(fn func(View)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.listeners = append(r.listeners, viewListener{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, l := range r.listeners {
			if l.id == id {
				r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
				return
			}
		}
	}
}

// settle re-resolves the current location. A redirect replaces the location,
// which re-enters settle through the history subscription.
func (r *Router) settle() {
	cur := r.history.Current()
	view, target := Resolve(cur.Path, r.auth.IsAuthorized())
	if target != cur.Path {
		r.log.Debug("redirecting", "from", cur.Path, "to", target)
		r.history.Replace(&url.URL{Path: target})
		return
	}

	r.mu.Lock()
	if r.view == view {
		r.mu.Unlock()
		return
	}
	r.view = view
	listeners := make([]viewListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	for _, l := range listeners {
		l.fn(view)
	}
}
