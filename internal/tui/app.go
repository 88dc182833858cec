// Package tui is the interactive terminal dashboard: a login form and the
// sortable server list, switched by the router as the session changes.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/thruflo/serverboard/internal/api"
	"github.com/thruflo/serverboard/internal/auth"
	"github.com/thruflo/serverboard/internal/logging"
	"github.com/thruflo/serverboard/internal/router"
	"github.com/thruflo/serverboard/internal/servers"
)

// Session is the part of *auth.Manager the UI drives.
type Session interface {
	IsAuthorized() bool
	Login(ctx context.Context, creds auth.Credentials) auth.Result
	Logout() error
}

// ServerLoader loads the server list. *api.Fetcher implements it.
type ServerLoader interface {
	Load(ctx context.Context) api.Snapshot
	Reset()
}

// Options wires the UI to the rest of the application.
type Options struct {
	Session Session
	Router  *router.Router
	Servers ServerLoader
	// Sorter orders the list; nil uses English collation.
	Sorter *servers.Sorter
}

// viewChangedMsg is sent when the router settles on a new view outside of
// the UI's own actions, e.g. the session file was removed by another
// process.
type viewChangedMsg struct{}

// Model is the root bubbletea model.
type Model struct {
	ctx  context.Context
	opts Options
	log  *logging.Logger

	view  router.View
	login loginModel
	dash  dashboardModel
}

// New builds the root model. It panics if any of Session, Router or Servers
// is missing.
func New(ctx context.Context, opts Options) Model {
	if opts.Session == nil || opts.Router == nil || opts.Servers == nil {
		panic("tui: New requires a session, a router and a server loader")
	}
	sort := servers.NewSortController(opts.Router.History(), opts.Sorter)

	return Model{
		ctx:   ctx,
		opts:  opts,
		log:   logging.With("component", "tui"),
		view:  opts.Router.View(),
		login: newLoginModel(ctx, opts.Session),
		dash:  newDashboardModel(ctx, opts.Servers, sort),
	}
}

// CurrentView returns the screen the model is showing.
func (m Model) CurrentView() router.View {
	return m.view
}

func (m Model) Init() tea.Cmd {
	if m.view == router.ViewDashboard {
		_, cmd := m.dash.load()
		return cmd
	}
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.dash = m.dash.resize(msg.Width, msg.Height)
		return m, nil

	case viewChangedMsg:
		return m.sync()

	case loginResultMsg:
		var cmd tea.Cmd
		m.login, cmd = m.login.update(msg)
		next, syncCmd := m.sync()
		return next, tea.Batch(cmd, syncCmd)

	case fetchedMsg:
		var cmd tea.Cmd
		m.dash, cmd = m.dash.update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.view == router.ViewDashboard {
			switch {
			case key.Matches(msg, m.dash.keys.Quit):
				return m, tea.Quit
			case key.Matches(msg, m.dash.keys.Logout):
				if err := m.opts.Session.Logout(); err != nil {
					m.log.Warn("logout did not clear the stored session", "error", err)
				}
				return m.sync()
			}
		} else if key.Matches(msg, m.login.keys.Quit) {
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	if m.view == router.ViewDashboard {
		m.dash, cmd = m.dash.update(msg)
	} else {
		m.login, cmd = m.login.update(msg)
	}
	return m, cmd
}

// sync follows the router after anything that may have changed the
// session. Entering the dashboard starts a load; leaving it drops the list.
func (m Model) sync() (Model, tea.Cmd) {
	v := m.opts.Router.View()
	if v == m.view {
		return m, nil
	}
	m.log.Debug("switching view", "from", m.view, "to", v)
	m.view = v

	var cmd tea.Cmd
	if v == router.ViewDashboard {
		m.dash, cmd = m.dash.load()
		return m, cmd
	}
	m.opts.Servers.Reset()
	m.dash, _ = m.dash.update(fetchedMsg{})
	m.login, cmd = m.login.reset()
	return m, cmd
}

func (m Model) View() string {
	if m.view == router.ViewDashboard {
		return appStyle.Render(m.dash.view(m.opts.Session.IsAuthorized()))
	}
	header := headerStyle.Render(titleStyle.Render("Nord Servers"))
	return appStyle.Render(header + "\n" + m.login.view())
}

// Run shows the UI until the user quits or ctx is done. Router view changes
// made outside the UI, such as a session removed by another process, are
// forwarded into the program.
func Run(ctx context.Context, opts Options, progOpts ...tea.ProgramOption) error {
	m := New(ctx, opts)

	progOpts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, progOpts...)
	p := tea.NewProgram(m, progOpts...)

	unsubscribe := opts.Router.Subscribe(func(router.View) {
		go p.Send(viewChangedMsg{})
	})
	defer unsubscribe()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to run dashboard: %w", err)
	}
	return nil
}
