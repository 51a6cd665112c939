package admintui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("4")).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Bold(true)

	menuItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))

	menuItemActiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("5")).
				Bold(true)

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("tn3270admin — %s", m.addr)))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errStyle.Render(fmt.Sprintf("connection error: %v", m.err)))
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.renderSessions())
	b.WriteString("\n")
	b.WriteString(m.renderMenu())

	if m.message != "" {
		b.WriteString("\n")
		b.WriteString(messageStyle.Render(m.message))
	}

	switch m.focus {
	case focusLevelInput:
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render("new log level (trace/debug/info/warn/error): "))
		b.WriteString(m.levelInput.View())
	case focusConfirm:
		b.WriteString("\n\n")
		b.WriteString(errStyle.Render(m.confirmText))
	}

	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("↑/↓ select · enter choose · q quit"))

	return b.String()
}

func (m Model) renderStatus() string {
	var b strings.Builder
	b.WriteString(labelStyle.Render("Protocol: "))
	b.WriteString(valueStyle.Render(fmt.Sprint(m.proxy["protocolName"])))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("Listen: "))
	b.WriteString(valueStyle.Render(fmt.Sprint(m.proxy["listenAddr"])))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Sessions: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.sessionCount)))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("Protocols: "))
	b.WriteString(valueStyle.Render(strings.Join(m.protocols, ", ")))
	return b.String()
}

func (m Model) renderSessions() string {
	if len(m.sessions) == 0 {
		return labelStyle.Render("no active sessions")
	}
	var b strings.Builder
	b.WriteString(labelStyle.Render("ID                                    REMOTE              TERMINAL    SCREEN"))
	b.WriteString("\n")
	for _, s := range m.sessions {
		b.WriteString(fmt.Sprintf("%-37s %-19s %-11s %s\n",
			fmt.Sprint(s["id"]), fmt.Sprint(s["remoteAddr"]), fmt.Sprint(s["terminalType"]), fmt.Sprint(s["screen"])))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderMenu() string {
	var b strings.Builder
	for i, item := range menuItems {
		style := menuItemStyle
		prefix := "  "
		if m.focus == focusMenu && i == m.cursor {
			style = menuItemActiveStyle
			prefix = "> "
		}
		b.WriteString(style.Render(prefix + item.label))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
