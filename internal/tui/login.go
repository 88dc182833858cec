package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/thruflo/serverboard/internal/auth"
)

const (
	fieldUser = iota
	fieldPass
)

// loginResultMsg carries the outcome of a submitted login.
type loginResultMsg struct {
	result auth.Result
}

// loginModel is the login form. While a login is pending the form ignores
// input, so at most one login is in flight.
type loginModel struct {
	ctx     context.Context
	session Session

	inputs  []textinput.Model
	focus   int
	invalid auth.FieldErrors
	failure string
	pending bool

	keys loginKeyMap
	help help.Model
}

func newLoginModel(ctx context.Context, session Session) loginModel {
	user := textinput.New()
	user.Prompt = ""
	user.Placeholder = "username"
	user.CharLimit = 64
	user.Width = 32
	user.Focus()

	pass := textinput.New()
	pass.Prompt = ""
	pass.Placeholder = "password"
	pass.CharLimit = 128
	pass.Width = 32
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'

	return loginModel{
		ctx:     ctx,
		session: session,
		inputs:  []textinput.Model{user, pass},
		keys:    loginKeys,
		help:    help.New(),
	}
}

// reset clears the form for a fresh visit, e.g. after logout.
func (m loginModel) reset() (loginModel, tea.Cmd) {
	for i := range m.inputs {
		m.inputs[i].SetValue("")
	}
	m.invalid = nil
	m.failure = ""
	m.pending = false
	return m.setFocus(fieldUser)
}

func (m loginModel) credentials() auth.Credentials {
	return auth.Credentials{
		Username: m.inputs[fieldUser].Value(),
		Password: m.inputs[fieldPass].Value(),
	}
}

func (m loginModel) setFocus(i int) (loginModel, tea.Cmd) {
	m.focus = i
	var cmd tea.Cmd
	for j := range m.inputs {
		if j == i {
			cmd = m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
	return m, cmd
}

func (m loginModel) update(msg tea.Msg) (loginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case loginResultMsg:
		return m.finish(msg.result), nil

	case tea.KeyMsg:
		if m.pending {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Next):
			return m.setFocus((m.focus + 1) % len(m.inputs))
		case key.Matches(msg, m.keys.Prev):
			return m.setFocus((m.focus + len(m.inputs) - 1) % len(m.inputs))
		case key.Matches(msg, m.keys.Submit):
			if m.focus == fieldUser {
				return m.setFocus(fieldPass)
			}
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// submit validates locally and, when the form is clean, starts the login.
func (m loginModel) submit() (loginModel, tea.Cmd) {
	creds := m.credentials()
	m.failure = ""
	if fe := creds.Validate(); fe != nil {
		m.invalid = fe
		return m, nil
	}
	m.invalid = nil
	m.pending = true

	ctx, session := m.ctx, m.session
	return m, func() tea.Msg {
		return loginResultMsg{result: session.Login(ctx, creds)}
	}
}

func (m loginModel) finish(res auth.Result) loginModel {
	m.pending = false
	switch {
	case res.OK():
		m.invalid = nil
		m.failure = ""
		m.inputs[fieldPass].SetValue("")
	case res.Invalid != nil:
		m.invalid = res.Invalid
	case res.Err == auth.ErrSuperseded:
		// a logout or newer login already decided the session
	default:
		m.failure = res.Err.Message
	}
	return m
}

func (m loginModel) view() string {
	var b strings.Builder

	rows := []struct {
		label string
		field string
	}{
		{"Username", auth.FieldUsername},
		{"Password", auth.FieldPassword},
	}
	for i, row := range rows {
		label := labelStyle.Render(row.label)
		if i == m.focus {
			label = focusedLabelStyle.Render(row.label)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, label, m.inputs[i].View()))
		b.WriteString("\n")
		if msg := m.invalid.First(row.field); msg != "" {
			b.WriteString(errorStyle.Render(msg))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	switch {
	case m.pending:
		b.WriteString(mutedStyle.Render("Logging in..."))
	case m.failure != "":
		b.WriteString(errorStyle.Render(m.failure))
	default:
		b.WriteString(mutedStyle.Render("Press enter to log in"))
	}

	return formStyle.Render(b.String()) + "\n\n" + m.help.View(m.keys)
}
