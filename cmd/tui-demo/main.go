// tui-demo is a manual test program for the dashboard. It serves the demo
// users and servers from an in-process stub API and keeps the session in
// memory, so nothing touches the network or the real session file.
// Run with: go run ./cmd/tui-demo
//
// Log in with testuser / testpassword. Try a wrong password, sorting with n
// and d, and L to log out.
package main

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"

	"golang.org/x/text/language"

	"github.com/thruflo/serverboard/internal/api"
	"github.com/thruflo/serverboard/internal/auth"
	"github.com/thruflo/serverboard/internal/config"
	"github.com/thruflo/serverboard/internal/logging"
	"github.com/thruflo/serverboard/internal/nav"
	"github.com/thruflo/serverboard/internal/router"
	"github.com/thruflo/serverboard/internal/server"
	"github.com/thruflo/serverboard/internal/servers"
	"github.com/thruflo/serverboard/internal/session"
	"github.com/thruflo/serverboard/internal/tui"
)

func main() {
	if err := runDemo(); err != nil {
		fmt.Fprintf(os.Stderr, "Demo error: %v\n", err)
		os.Exit(1)
	}
}

func runDemo() error {
	closeLog, err := logging.Configure("debug", "tui-demo.log")
	if err != nil {
		return err
	}
	defer closeLog()

	users, err := server.DemoUsers()
	if err != nil {
		return err
	}
	srv, err := server.NewServer(&server.Config{
		TokenTTL:  config.DefaultTokenTTL,
		Users:     users,
		Servers:   server.DemoServers(),
		RateLimit: config.DefaultConfig().Server.RateLimit,
	})
	if err != nil {
		return err
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := api.NewClient(ts.URL)
	manager, err := auth.NewManager(session.NewMemoryStore(), client)
	if err != nil {
		return err
	}

	history, err := nav.NewHistory(router.PathDashboard)
	if err != nil {
		return err
	}
	rtr := router.New(history, manager)
	defer rtr.Close()

	return tui.Run(context.Background(), tui.Options{
		Session: manager,
		Router:  rtr,
		Servers: api.NewFetcher(client, manager),
		Sorter:  servers.NewSorter(language.English),
	})
}
