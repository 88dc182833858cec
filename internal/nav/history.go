// Package nav models navigation as a history of locations (path plus query),
// the way a browser does, so view state such as the sort directive can be
// shared as a link and restored later.
package nav

import (
	"fmt"
	"net/url"
	"slices"
	"sync"
)

// Listener is called after every location change with the new location.
type Listener func(u *url.URL)

// History is a goroutine-safe back/forward stack of locations.
type History struct {
	mu        sync.Mutex
	entries   []*url.URL
	index     int
	listeners map[int]Listener
	nextID    int
}

// NewHistory starts a history at the given link (e.g. "/dashboard?order=asc").
func NewHistory(start string) (*History, error) {
	u, err := ParseLink(start)
	if err != nil {
		return nil, err
	}
	return &History{
		entries:   []*url.URL{u},
		listeners: make(map[int]Listener),
	}, nil
}

// ParseLink parses a relative link. Only path, query and fragment are kept.
func ParseLink(link string) (*url.URL, error) {
	if link == "" {
		link = "/"
	}
	u, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("invalid location %q: %w", link, err)
	}
	out := &url.URL{Path: u.Path, RawQuery: u.RawQuery, Fragment: u.Fragment}
	if out.Path == "" {
		out.Path = "/"
	}
	return out, nil
}

// Link renders u as a relative link.
func Link(u *url.URL) string {
	if u == nil {
		return "/"
	}
	return u.RequestURI()
}

// Current returns a copy of the active location.
func (h *History) Current() *url.URL {
	h.mu.Lock()
	defer h.mu.Unlock()
	return copyURL(h.entries[h.index])
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Push adds a location after the current one, discarding forward entries.
func (h *History) Push(u *url.URL) {
	h.mu.Lock()
	h.entries = append(h.entries[:h.index+1], copyURL(u))
	h.index = len(h.entries) - 1
	listeners := h.snapshotListeners()
	cur := copyURL(h.entries[h.index])
	h.mu.Unlock()

	notify(listeners, cur)
}

// Replace overwrites the current location without adding an entry.
func (h *History) Replace(u *url.URL) {
	h.mu.Lock()
	h.entries[h.index] = copyURL(u)
	listeners := h.snapshotListeners()
	cur := copyURL(h.entries[h.index])
	h.mu.Unlock()

	notify(listeners, cur)
}

// Back moves one entry back. It reports false at the start of history.
func (h *History) Back() bool {
	return h.move(-1)
}

// Forward moves one entry forward. It reports false at the end of history.
func (h *History) Forward() bool {
	return h.move(1)
}

func (h *History) move(delta int) bool {
	h.mu.Lock()
	next := h.index + delta
	if next < 0 || next >= len(h.entries) {
		h.mu.Unlock()
		return false
	}
	h.index = next
	listeners := h.snapshotListeners()
	cur := copyURL(h.entries[h.index])
	h.mu.Unlock()

	notify(listeners, cur)
	return true
}

// Subscribe registers fn for location changes and returns a function that
// removes it.
func (h *History) Subscribe(fn Listener) (unsubscribe func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// snapshotListeners must be called with h.mu held.
func (h *History) snapshotListeners() []Listener {
	ids := make([]int, 0, len(h.listeners))
	for id := range h.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, h.listeners[id])
	}
	return out
}

func notify(listeners []Listener, u *url.URL) {
	for _, fn := range listeners {
		fn(copyURL(u))
	}
}

func copyURL(u *url.URL) *url.URL {
	if u == nil {
		return &url.URL{Path: "/"}
	}
	c := *u
	return &c
}
