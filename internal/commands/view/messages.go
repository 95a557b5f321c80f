package view

// loadedMsg carries the outcome of a Loader call
type loadedMsg struct {
	doc   *Document
	error error
}

// copiedMsg reports the outcome of copying the markdown report
type copiedMsg struct {
	error error
}
