package main

import (
	tea "github.com/charmbracelet/bubbletea"

	"corkboard/internal/board"
	"corkboard/internal/boardsync"
	"corkboard/internal/drawing"
)

type InputKind int

const (
	InputNewItem InputKind = iota
	InputEditItem
	InputTopic
	InputItemLimit
	InputBackground
)

type model struct {
	app     *app
	ctrl    *boardsync.Controller
	changes <-chan struct{}

	width  int
	height int
	panX   int
	panY   int

	mode       Mode
	help       bool
	helpScroll int

	// mouseDown is set between a press and its release so motion without a
	// button held is not forwarded.
	mouseDown bool

	inputKind      InputKind
	inputType      board.ItemType
	inputItemID    string
	inputText      []rune
	inputCursorPos int

	pad drawing.Pad

	confirmAction ConfirmAction
	confirmItemID string

	errorMessage   string
	successMessage string
}

// boardChangedMsg is sent whenever the controller reports a visible change.
type boardChangedMsg struct{}

// changeNotifier hands controller change notifications to the program
// without ever blocking the controller.
func changeNotifier() (notify func(), changes <-chan struct{}) {
	ch := make(chan struct{}, 1)
	return func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	}, ch
}

func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return boardChangedMsg{}
	}
}
