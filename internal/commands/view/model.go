// Package view implements the interactive skeleton viewer
package view

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// headerHeight and footerHeight are the lines reserved around the viewport
const (
	headerHeight = 3
	footerHeight = 2
)

// Options configures the viewer
type Options struct {
	ShowPositions bool
}

// Model represents the viewer state
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	loader Loader
	status Status
	width  int
	height int
	styles Styles

	doc           *Document
	markdown      string // report of doc, copied with Keys.Copy
	showPositions bool
	statusMessage string
	errorMsg      string

	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	showHelp bool

	// Viewport readiness flag
	ready bool
}

// NewModel creates a viewer that displays what loader produces
func NewModel(ctx context.Context, loader Loader, opts Options) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	styles := DefaultStyles()
	s.Style = styles.Spinner

	h := help.New()
	h.ShowAll = false

	ctx, cancel := context.WithCancel(ctx)

	vp := viewport.New(10, 10)
	vp.Style = styles.Paragraph

	return Model{
		ctx:           ctx,
		cancel:        cancel,
		loader:        loader,
		status:        StatusLoading,
		styles:        styles,
		showPositions: opts.ShowPositions,
		statusMessage: "Loading...",
		viewport:      vp,
		spinner:       s,
		help:          h,
	}
}

// Init starts the spinner and the first load
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		loadDocument(m),
	)
}

// Run starts the viewer in the alternate screen and blocks until it quits
func Run(ctx context.Context, loader Loader, opts Options) error {
	p := tea.NewProgram(
		NewModel(ctx, loader, opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	_, err := p.Run()
	return err
}
