// Package admintui is the BubbleTea TUI for tn3270admin: it connects
// to a gateway's admin control socket, polls Status, and lets the
// operator trigger Shutdown, ReloadConfig, and SetLogLevel.
package admintui

import (
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/neo6/tn3270gw/internal/adminclient"
)

const pollInterval = 2 * time.Second

type focusTarget int

const (
	focusMenu focusTarget = iota
	focusLevelInput
	focusConfirm
)

type menuAction int

const (
	actionRefresh menuAction = iota
	actionReloadConfig
	actionSetLogLevel
	actionShutdown
)

var menuItems = []struct {
	action menuAction
	label  string
}{
	{actionRefresh, "Refresh status"},
	{actionReloadConfig, "Reload config"},
	{actionSetLogLevel, "Set log level"},
	{actionShutdown, "Shutdown proxy"},
}

// Model is the BubbleTea model for the admin TUI.
type Model struct {
	client *adminclient.Client
	addr   string

	focus  focusTarget
	cursor int

	proxy        map[string]any
	sessionCount int
	sessions     []map[string]any
	protocols    []string

	levelInput  textinput.Model
	confirmText string
	pending     menuAction

	message string
	err     error
	width   int
	height  int
}

// New builds a Model already connected to addr.
func New(client *adminclient.Client, addr string) Model {
	ti := textinput.New()
	ti.Placeholder = "info"
	ti.CharLimit = 16
	ti.Width = 16

	return Model{client: client, addr: addr, width: 80, height: 25, levelInput: ti}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tea.SetWindowTitle("tn3270admin — "+m.addr), pollStatusCmd(m.client), pollProtocolsCmd(m.client))
}

type statusMsg struct {
	resp adminclient.Response
	err  error
}

type protocolsMsg struct {
	resp adminclient.Response
	err  error
}

type actionResultMsg struct {
	action menuAction
	resp   adminclient.Response
	err    error
}

type tickMsg time.Time

func pollStatusCmd(c *adminclient.Client) tea.Cmd {
	return func() tea.Msg {
		resp, err := c.Status()
		return statusMsg{resp: resp, err: err}
	}
}

func pollProtocolsCmd(c *adminclient.Client) tea.Cmd {
	return func() tea.Msg {
		resp, err := c.GetProtocols()
		return protocolsMsg{resp: resp, err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func runActionCmd(c *adminclient.Client, action menuAction, level string) tea.Cmd {
	return func() tea.Msg {
		var resp adminclient.Response
		var err error
		switch action {
		case actionReloadConfig:
			resp, err = c.ReloadConfig()
		case actionSetLogLevel:
			resp, err = c.SetLogLevel(level)
		case actionShutdown:
			resp, err = c.Shutdown()
		}
		return actionResultMsg{action: action, resp: resp, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(pollStatusCmd(m.client), tickCmd())

	case statusMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tickCmd()
		}
		m.err = nil
		if data, ok := msg.resp.Data.(map[string]any); ok {
			if proxy, ok := data["proxy"].(map[string]any); ok {
				m.proxy = proxy
			}
			if n, ok := data["sessionCount"].(float64); ok {
				m.sessionCount = int(n)
			}
			m.sessions = nil
			if raw, ok := data["sessions"].([]any); ok {
				for _, s := range raw {
					if sm, ok := s.(map[string]any); ok {
						m.sessions = append(m.sessions, sm)
					}
				}
				sort.Slice(m.sessions, func(i, j int) bool {
					return fmt.Sprint(m.sessions[i]["id"]) < fmt.Sprint(m.sessions[j]["id"])
				})
			}
		}
		return m, tickCmd()

	case protocolsMsg:
		if msg.err == nil {
			if data, ok := msg.resp.Data.(map[string]any); ok {
				m.protocols = nil
				if raw, ok := data["protocols"].([]any); ok {
					for _, p := range raw {
						m.protocols = append(m.protocols, fmt.Sprint(p))
					}
				}
			}
		}
		return m, nil

	case actionResultMsg:
		if msg.err != nil {
			m.message = fmt.Sprintf("error: %v", msg.err)
		} else if err := msg.resp.Err(); err != nil {
			m.message = fmt.Sprintf("error: %v", err)
		} else {
			switch msg.action {
			case actionReloadConfig:
				m.message = "config reloaded"
			case actionSetLogLevel:
				m.message = "log level updated"
			case actionShutdown:
				m.message = "shutdown acknowledged"
				return m, tea.Quit
			}
		}
		m.focus = focusMenu
		return m, pollStatusCmd(m.client)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.focus {
	case focusMenu:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(menuItems)-1 {
				m.cursor++
			}
		case "enter":
			return m.selectMenuItem()
		}
		return m, nil

	case focusLevelInput:
		switch msg.String() {
		case "esc":
			m.focus = focusMenu
			m.levelInput.SetValue("")
			return m, nil
		case "enter":
			level := m.levelInput.Value()
			m.levelInput.SetValue("")
			m.focus = focusMenu
			return m, runActionCmd(m.client, actionSetLogLevel, level)
		}
		var cmd tea.Cmd
		m.levelInput, cmd = m.levelInput.Update(msg)
		return m, cmd

	case focusConfirm:
		switch msg.String() {
		case "y", "Y":
			action := m.pending
			m.focus = focusMenu
			return m, runActionCmd(m.client, action, "")
		default:
			m.focus = focusMenu
			m.message = "cancelled"
		}
		return m, nil
	}
	return m, nil
}

func (m Model) selectMenuItem() (tea.Model, tea.Cmd) {
	switch menuItems[m.cursor].action {
	case actionRefresh:
		return m, tea.Batch(pollStatusCmd(m.client), pollProtocolsCmd(m.client))
	case actionReloadConfig:
		return m, runActionCmd(m.client, actionReloadConfig, "")
	case actionSetLogLevel:
		m.focus = focusLevelInput
		return m, m.levelInput.Focus()
	case actionShutdown:
		m.focus = focusConfirm
		m.pending = actionShutdown
		m.confirmText = "Shut down the proxy? [y/N]"
		return m, nil
	}
	return m, nil
}
