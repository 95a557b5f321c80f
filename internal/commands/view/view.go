package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/tildaslashalef/partnest/internal/loggy"
	"github.com/tildaslashalef/partnest/internal/report"
)

// View renders the UI based on the model's current state
func (m Model) View() string {
	if !m.ready {
		return "Loading...\n"
	}

	var mainContent string
	switch m.status {
	case StatusLoading:
		mainContent = m.renderLoadingView()
	case StatusViewing:
		mainContent = lipgloss.JoinVertical(lipgloss.Left,
			m.renderHeader(),
			m.viewport.View(),
			m.renderStatusBar(),
		)
	case StatusError:
		mainContent = m.renderErrorView()
	default:
		mainContent = "Unknown status"
	}

	var footer string
	if m.showHelp {
		footer = m.help.View(Keys)
	} else {
		footer = m.help.ShortHelpView(Keys.ShortHelp())
	}

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, footer)
}

func (m Model) renderLoadingView() string {
	content := m.spinner.View() + " " + m.styles.StatusText.Render(m.statusMessage)
	return lipgloss.Place(m.width, max(m.height-footerHeight, 1),
		lipgloss.Center, lipgloss.Center,
		content,
	)
}

func (m Model) renderErrorView() string {
	body := m.errorMsg
	if m.width > 4 {
		body = wordwrap.String(body, m.width-4)
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		m.styles.Error.Render("Error"),
		"",
		m.styles.Paragraph.Render(body),
		"",
		m.styles.Subtle.Render("Press 'r' to retry or 'q' to quit."),
	)

	return lipgloss.Place(m.width, max(m.height-footerHeight, 1),
		lipgloss.Center, lipgloss.Center,
		content,
	)
}

// renderHeader shows the document title on the left and the outcome on the right
func (m Model) renderHeader() string {
	title := "Score skeleton"
	if m.doc != nil {
		title = m.doc.Title
		if m.doc.Run != nil {
			title = fmt.Sprintf("%s (%s)", m.doc.Run.Name, m.doc.Run.ID)
		}
	}

	outcome := m.styles.Success.Render("ok")
	if m.doc != nil && m.doc.BuildErr != nil {
		outcome = m.styles.Error.Render("failed")
	} else if m.doc != nil && m.doc.Result != nil && m.doc.Result.Warnings() > 0 {
		outcome = m.styles.Warning.Render(fmt.Sprintf("%d warning(s)", m.doc.Result.Warnings()))
	}

	left := m.styles.Header.Render(title)
	right := m.styles.Header.Render(outcome)

	spacerWidth := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, left, spacer, right)
}

func (m Model) renderStatusBar() string {
	scroll := fmt.Sprintf("%3.f%%", m.viewport.ScrollPercent()*100)
	msg := m.statusMessage
	if limit := m.width - lipgloss.Width(scroll) - 4; limit > 0 && lipgloss.Width(msg) > limit {
		msg = truncate.StringWithTail(msg, uint(limit), "…")
	}

	left := m.styles.StatusBar.Render(msg)
	right := m.styles.StatusBar.Render(scroll)
	gap := m.styles.StatusBar.Render(strings.Repeat(" ", max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 0)))
	return lipgloss.JoinHorizontal(lipgloss.Top, left, gap, right)
}

// renderContent renders the markdown report for the viewport
func (m Model) renderContent() string {
	if m.doc == nil {
		return ""
	}

	var b strings.Builder
	if m.doc.BuildErr != nil {
		msg := "Build failed: " + m.doc.BuildErr.Error()
		if m.viewport.Width > 2 {
			msg = wordwrap.String(msg, m.viewport.Width-2)
		}
		b.WriteString(m.styles.Error.Render(msg))
		b.WriteString("\n")
	}

	rendered, err := report.RenderMarkdown(m.markdown, max(m.viewport.Width-2, 20))
	if err != nil {
		loggy.Warn("Failed to render markdown", "error", err)
		rendered = wordwrap.String(m.markdown, max(m.viewport.Width-2, 20))
	}
	b.WriteString(rendered)
	return b.String()
}
