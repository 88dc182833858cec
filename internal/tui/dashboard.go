package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/thruflo/serverboard/internal/api"
	"github.com/thruflo/serverboard/internal/servers"
)

const (
	nameColumnWidth     = 32
	distanceColumnWidth = 12
	defaultTableHeight  = 15
	// title, sort line, help and padding
	dashboardChrome = 10
)

// fetchedMsg carries the snapshot a load settled on.
type fetchedMsg struct {
	snap api.Snapshot
}

type dashboardModel struct {
	ctx    context.Context
	loader ServerLoader
	sort   *servers.SortController

	snap    api.Snapshot
	table   table.Model
	spinner spinner.Model

	keys dashboardKeyMap
	help help.Model
}

func newDashboardModel(ctx context.Context, loader ServerLoader, sort *servers.SortController) dashboardModel {
	t := table.New(
		table.WithFocused(true),
		table.WithHeight(defaultTableHeight),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorAccent)

	m := dashboardModel{
		ctx:     ctx,
		loader:  loader,
		sort:    sort,
		table:   t,
		spinner: sp,
		keys:    newDashboardKeys(),
		help:    help.New(),
	}
	m.refresh()
	return m
}

// load starts a fetch. The spinner ticks until the result arrives.
func (m dashboardModel) load() (dashboardModel, tea.Cmd) {
	m.snap = api.Snapshot{Status: api.StatusLoading}
	m.keys.Retry.SetEnabled(false)

	ctx, loader := m.ctx, m.loader
	return m, tea.Batch(
		m.spinner.Tick,
		func() tea.Msg { return fetchedMsg{snap: loader.Load(ctx)} },
	)
}

func (m dashboardModel) resize(width, height int) dashboardModel {
	h := height - dashboardChrome
	if h < 3 {
		h = 3
	}
	m.table.SetHeight(h)
	m.help.Width = width
	return m
}

func (m dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case fetchedMsg:
		m.snap = msg.snap
		m.keys.Retry.SetEnabled(m.snap.Status == api.StatusError)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.snap.Status != api.StatusLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.SortByName):
			m.sort.SelectField(servers.FieldName)
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keys.SortByDistance):
			m.sort.SelectField(servers.FieldDistance)
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keys.Retry):
			return m.load()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// refresh rebuilds columns and rows from the snapshot and the sort directive
// in the current location.
func (m *dashboardModel) refresh() {
	d, active := m.sort.Directive()
	m.table.SetColumns([]table.Column{
		{Title: columnTitle("Name", servers.FieldName, d, active), Width: nameColumnWidth},
		{Title: columnTitle("Distance", servers.FieldDistance, d, active), Width: distanceColumnWidth},
	})

	list := m.sort.Apply(m.snap.Servers)
	rows := make([]table.Row, 0, len(list))
	for _, s := range list {
		rows = append(rows, table.Row{s.Name, s.DistanceString()})
	}
	m.table.SetRows(rows)
}

func columnTitle(title string, field servers.Field, d servers.SortDirective, active bool) string {
	if !active || d.Field != field {
		return title
	}
	return title + " " + arrow(d.Order)
}

func arrow(o servers.Order) string {
	if o == servers.Desc {
		return "▼"
	}
	return "▲"
}

// sortLine describes the active directive, e.g. "Sorted by name (A-Z)".
func (m dashboardModel) sortLine() string {
	d, ok := m.sort.Directive()
	if !ok {
		return "Unsorted"
	}
	return fmt.Sprintf("Sorted by %s (%s) %s", d.Field, d.Label(), arrow(d.Order))
}

func (m dashboardModel) view(authorized bool) string {
	var b strings.Builder

	title := titleStyle.Render("Nord Servers")
	if authorized {
		title = lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", mutedStyle.Render("L logout"))
	}
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")

	switch m.snap.Status {
	case api.StatusIdle, api.StatusLoading:
		b.WriteString(m.spinner.View() + " Loading...")
	case api.StatusError:
		b.WriteString(errorStyle.Render(api.ErrorMessage))
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("Press r to retry"))
	case api.StatusSuccess:
		b.WriteString(mutedStyle.Render(m.sortLine()))
		b.WriteString("\n")
		if len(m.snap.Servers) == 0 {
			b.WriteString("No servers available")
		} else {
			b.WriteString(tableBorderStyle.Render(m.table.View()))
		}
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}
