package view

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tildaslashalef/partnest/internal/loggy"
	"github.com/tildaslashalef/partnest/internal/report"
)

// Update handles messages and updates the model state
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerHeight-footerHeight, 1)
		m.ready = true
		loggy.Debug("Window resized", "width", m.width, "height", m.height)

		// Wrapping depends on the width
		if m.status == StatusViewing {
			m.viewport.SetContent(m.renderContent())
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, Keys.Quit):
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit

		case key.Matches(msg, Keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, Keys.Reload) && m.status != StatusLoading:
			m.status = StatusLoading
			m.statusMessage = "Reloading..."
			return m, tea.Batch(m.spinner.Tick, loadDocument(m))

		case key.Matches(msg, Keys.Copy) && m.status == StatusViewing:
			m.statusMessage = "Copying markdown..."
			return m, copyMarkdown(m.markdown)

		case key.Matches(msg, Keys.Positions) && m.status == StatusViewing:
			m.showPositions = !m.showPositions
			m.markdown = m.buildMarkdown()
			m.viewport.SetContent(m.renderContent())
			if m.showPositions {
				m.statusMessage = "Showing positions"
			} else {
				m.statusMessage = "Hiding positions"
			}
			return m, nil

		default:
			if m.status == StatusViewing {
				m.viewport, cmd = m.viewport.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case loadedMsg:
		if msg.error != nil {
			m.status = StatusError
			m.errorMsg = msg.error.Error()
			return m, nil
		}

		m.doc = msg.doc
		m.status = StatusViewing
		m.errorMsg = ""
		m.markdown = m.buildMarkdown()
		m.statusMessage = report.Summary(m.doc.Result)
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoTop()
		return m, nil

	case copiedMsg:
		if msg.error != nil {
			loggy.Warn("Failed to copy markdown", "error", msg.error)
			m.statusMessage = fmt.Sprintf("Copy failed: %v", msg.error)
		} else {
			m.statusMessage = "Markdown copied to clipboard"
		}
		return m, nil

	case spinner.TickMsg:
		if m.status != StatusLoading {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	m.help, cmd = m.help.Update(msg)
	cmds = append(cmds, cmd)

	// Mouse wheel
	if m.status == StatusViewing {
		if _, ok := msg.(tea.KeyMsg); !ok {
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) buildMarkdown() string {
	if m.doc == nil {
		return ""
	}
	return report.Markdown(m.doc.Result, report.MarkdownOptions{
		Title:         m.doc.Title,
		ShowPositions: m.showPositions,
	})
}
