package cli

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"

	"github.com/thruflo/serverboard/internal/api"
	"github.com/thruflo/serverboard/internal/auth"
	"github.com/thruflo/serverboard/internal/config"
	"github.com/thruflo/serverboard/internal/nav"
	"github.com/thruflo/serverboard/internal/router"
	"github.com/thruflo/serverboard/internal/servers"
	"github.com/thruflo/serverboard/internal/session"
)

// ErrNotLoggedIn is returned by commands that need a session.
var ErrNotLoggedIn = errors.New("not logged in; run \"serverboard login\" first")

// runtime is the object graph shared by the client commands.
type runtime struct {
	cfg     *config.Config
	store   session.Store
	client  *api.Client
	manager *auth.Manager
	sorter  *servers.Sorter
}

func openRuntime(cfg *config.Config) (*runtime, error) {
	store, err := session.Open(cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	client := api.NewClient(cfg.API.URL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithUserAgent("serverboard/"+Version),
	)

	manager, err := auth.NewManager(store, client)
	if err != nil {
		store.Close()
		return nil, err
	}

	// validated by config.Load
	lang, _ := language.Parse(cfg.Locale)

	return &runtime{
		cfg:     cfg,
		store:   store,
		client:  client,
		manager: manager,
		sorter:  servers.NewSorter(lang),
	}, nil
}

// route builds a history starting at location and a router guarding it.
func (r *runtime) route(location string) (*router.Router, error) {
	history, err := nav.NewHistory(location)
	if err != nil {
		return nil, fmt.Errorf("invalid location %q: %w", location, err)
	}
	return router.New(history, r.manager), nil
}

func (r *runtime) fetcher() *api.Fetcher {
	return api.NewFetcher(r.client, r.manager)
}

func (r *runtime) Close() error {
	return r.store.Close()
}
