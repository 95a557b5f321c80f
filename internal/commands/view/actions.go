package view

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tildaslashalef/partnest/internal/loggy"
	"github.com/tildaslashalef/partnest/internal/utils"
)

// loadDocument runs the loader and returns a command that sends a loadedMsg
func loadDocument(m Model) tea.Cmd {
	loader := m.loader
	ctx := m.ctx
	return func() tea.Msg {
		doc, err := loader.Load(ctx)
		if err != nil {
			loggy.Error("Failed to load skeleton", "error", err)
			return loadedMsg{error: err}
		}
		loggy.Debug("Loaded skeleton", "title", doc.Title, "failed", doc.BuildErr != nil)
		return loadedMsg{doc: doc}
	}
}

// copyMarkdown copies md to the clipboard
func copyMarkdown(md string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{error: utils.CopyToClipboard(md)}
	}
}
