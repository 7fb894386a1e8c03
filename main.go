package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"corkboard/internal/board"
	"corkboard/internal/boardsync"
	"corkboard/internal/drawing"
	"corkboard/internal/interaction"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runTUI shows the controller's open board until the user quits.
func runTUI(ctx context.Context, a *app, ctrl *boardsync.Controller, changes <-chan struct{}) error {
	p := tea.NewProgram(
		newModel(a, ctrl, changes),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func newModel(a *app, ctrl *boardsync.Controller, changes <-chan struct{}) model {
	return model{
		app:     a,
		ctrl:    ctrl,
		changes: changes,
		mode:    ModeNormal,
	}
}

var (
	statusStyle = lipgloss.NewStyle().Reverse(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true)
	flagStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f59e0b")).Bold(true)
)

func (m model) Init() tea.Cmd {
	return waitForChange(m.changes)
}

func (m model) canvasWidth() int { return max(m.width, 1) }

// canvasHeight leaves the bottom row for the status line.
func (m model) canvasHeight() int { return max(m.height-1, 1) }

func (m model) viewport() viewport {
	return viewport{width: m.canvasWidth(), height: m.canvasHeight(), panX: m.panX, panY: m.panY}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case boardChangedMsg:
		return m, waitForChange(m.changes)

	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil

	case tea.KeyMsg:
		if m.help {
			return m.handleHelpKey(msg)
		}
		switch m.mode {
		case ModeNormal:
			return m.handleNormalKey(msg)
		case ModeInput:
			return m.handleInputKey(msg)
		case ModeDraw:
			return m.handleDrawKey(msg)
		case ModeConfirm:
			return m.handleConfirmKey(msg)
		}
	}
	return m, nil
}

// handleMouse turns left-button presses, drags and releases into pointer
// events. In draw mode they go to the pad instead of the board.
func (m *model) handleMouse(msg tea.MouseMsg) {
	if tea.MouseEvent(msg).IsWheel() {
		m.handleWheel(msg)
		return
	}
	if m.mode != ModeNormal && m.mode != ModeDraw {
		return
	}
	vp := m.viewport()
	pos := vp.toBoard(msg.X, msg.Y)

	var kind interaction.EventKind
	switch {
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		if msg.Y >= m.canvasHeight() {
			return
		}
		kind = interaction.PointerDown
		m.mouseDown = true
		m.clearMessages()
	case msg.Action == tea.MouseActionMotion && m.mouseDown:
		kind = interaction.PointerMove
	case msg.Action == tea.MouseActionRelease && m.mouseDown:
		kind = interaction.PointerUp
		m.mouseDown = false
	default:
		return
	}

	ev := interaction.Event{Kind: kind, Pos: pos}
	if m.mode == ModeDraw {
		m.pad.Handle(ev)
		return
	}
	if kind == interaction.PointerDown {
		ev.Target = hitTest(m.ctrl.View(), vp, msg.X, msg.Y)
	}
	m.ctrl.Handle(ev)
}

func (m *model) clearMessages() {
	m.errorMessage = ""
	m.successMessage = ""
}

func (m model) handleNormalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.clearMessages()
	view := m.ctrl.View()
	active := view.Session.Active

	key := msg.String()
	switch key {
	case "ctrl+c":
		return m, tea.Quit
	case "q":
		if m.app.config.Confirmations {
			m.mode = ModeConfirm
			m.confirmAction = ConfirmQuit
			return m, nil
		}
		return m, tea.Quit
	case "?":
		m.help = true
		m.helpScroll = 0
	case "h", "j", "k", "l", "left", "down", "up", "right",
		"H", "J", "K", "L", "shift+left", "shift+down", "shift+up", "shift+right":
		m.handlePan(key, m.getMoveSpeed(key))
	case "0":
		m.panX, m.panY = 0, 0
	case "esc":
		if view.Session.GroupMode {
			m.ctrl.SetGroupMode(false)
		}

	case "t":
		m.startInput(InputNewItem, board.TypeText, "", "")
	case "e":
		m.startInput(InputNewItem, board.TypeEmoji, "", "")
	case "s":
		m.startInput(InputNewItem, board.TypeSticker, "", "")
	case "i":
		m.startInput(InputNewItem, board.TypeImage, "", "")
	case "enter":
		it, _, ok := view.Board.Find(active)
		if !ok || active == "" {
			m.errorMessage = "no active item"
			return m, nil
		}
		if !view.Board.CanEdit(m.ctrl.User(), it) {
			m.errorMessage = "not your item"
			return m, nil
		}
		if it.Type() == board.TypeDrawing {
			m.errorMessage = "drawings cannot be edited as text"
			return m, nil
		}
		m.startInput(InputEditItem, it.Type(), it.ID, it.Content())
	case "p":
		m.pasteClipboard()
	case "y":
		if err := clipboard.WriteAll(view.Board.ID); err != nil {
			m.errorMessage = fmt.Sprintf("copy failed: %v", err)
		} else {
			m.successMessage = "board id copied"
		}
	case "D":
		m.mode = ModeDraw
		m.pad = drawing.Pad{}

	case "d", "delete", "backspace":
		if view.Session.GroupMode {
			if len(view.Session.Selected) == 0 {
				return m, nil
			}
			if m.app.config.Confirmations {
				m.mode = ModeConfirm
				m.confirmAction = ConfirmDeleteSelection
				return m, nil
			}
			m.ctrl.DeleteSelection()
			return m, nil
		}
		if active == "" {
			return m, nil
		}
		if m.app.config.Confirmations {
			m.mode = ModeConfirm
			m.confirmAction = ConfirmDeleteItem
			m.confirmItemID = active
			return m, nil
		}
		m.report(m.ctrl.DeleteItem(active))
	case "]":
		if active != "" {
			m.report(m.ctrl.ReorderItem(active, board.LayerFront))
		}
	case "[":
		if active != "" {
			m.report(m.ctrl.ReorderItem(active, board.LayerBack))
		}
	case "+", "=":
		if active != "" {
			m.report(m.ctrl.NudgeFontSize(active, fontStep))
		}
	case "-", "_":
		if active != "" {
			m.report(m.ctrl.NudgeFontSize(active, -fontStep))
		}
	case "g":
		if !m.ctrl.SetGroupMode(!view.Session.GroupMode) {
			m.errorMessage = "finish the current gesture first"
		}

	case "P":
		public := !view.Board.IsPublic
		if m.report(m.ctrl.SetBoardField(board.Settings{IsPublic: &public})) {
			m.successMessage = "board is private"
			if public {
				m.successMessage = "board is public"
			}
		}
	case "T":
		m.startInput(InputTopic, "", "", view.Board.Topic)
	case "M":
		limit := ""
		if view.Board.MaxItemsPerUser > 0 {
			limit = strconv.Itoa(view.Board.MaxItemsPerUser)
		}
		m.startInput(InputItemLimit, "", "", limit)
	case "C":
		m.startInput(InputBackground, "", "", view.Board.BackgroundColor)

	case "x":
		m.export(exportPNGExt)
	case "X":
		m.export(exportTextExt)
	}
	return m, nil
}

// report shows err in the status line and reports whether it was nil.
func (m *model) report(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, board.ErrForbidden):
		m.errorMessage = "only the host can do that"
	case errors.Is(err, board.ErrLimitReached):
		m.errorMessage = "item limit reached"
	default:
		m.errorMessage = err.Error()
	}
	return false
}

func (m *model) startInput(kind InputKind, t board.ItemType, itemID, initial string) {
	m.mode = ModeInput
	m.inputKind = kind
	m.inputType = t
	m.inputItemID = itemID
	m.inputText = []rune(initial)
	m.inputCursorPos = len(m.inputText)
}

func (m *model) endInput() {
	m.mode = ModeNormal
	m.inputText = nil
	m.inputCursorPos = 0
	m.inputItemID = ""
}

// multiline reports whether Enter inserts a newline instead of submitting.
func (m model) multiline() bool {
	return m.inputType == board.TypeText && (m.inputKind == InputNewItem || m.inputKind == InputEditItem)
}

func (m model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyEscape:
		m.endInput()
	case msg.Type == tea.KeyCtrlS, msg.Type == tea.KeyEnter && !m.multiline():
		m.submitInput()
	case msg.Type == tea.KeyEnter:
		m.insertInput("\n")
	case msg.Type == tea.KeyLeft:
		if m.inputCursorPos > 0 {
			m.inputCursorPos--
		}
	case msg.Type == tea.KeyRight:
		if m.inputCursorPos < len(m.inputText) {
			m.inputCursorPos++
		}
	case msg.Type == tea.KeyBackspace:
		if m.inputCursorPos > 0 {
			m.inputText = append(m.inputText[:m.inputCursorPos-1], m.inputText[m.inputCursorPos:]...)
			m.inputCursorPos--
		}
	case msg.Type == tea.KeyDelete:
		if m.inputCursorPos < len(m.inputText) {
			m.inputText = append(m.inputText[:m.inputCursorPos], m.inputText[m.inputCursorPos+1:]...)
		}
	case msg.Type == tea.KeySpace:
		m.insertInput(" ")
	case msg.Type == tea.KeyRunes:
		m.insertInput(string(msg.Runes))
	}
	return m, nil
}

func (m *model) insertInput(s string) {
	ins := []rune(s)
	text := make([]rune, 0, len(m.inputText)+len(ins))
	text = append(text, m.inputText[:m.inputCursorPos]...)
	text = append(text, ins...)
	text = append(text, m.inputText[m.inputCursorPos:]...)
	m.inputText = text
	m.inputCursorPos += len(ins)
}

func (m *model) submitInput() {
	text := string(m.inputText)
	kind, t, itemID := m.inputKind, m.inputType, m.inputItemID
	m.endInput()

	switch kind {
	case InputNewItem:
		if strings.TrimSpace(text) == "" {
			return
		}
		m.addItem(t, text)
	case InputEditItem:
		m.report(m.ctrl.UpdateItem(itemID, board.Patch{Content: &text}))
	case InputTopic:
		topic := strings.TrimSpace(text)
		m.report(m.ctrl.SetBoardField(board.Settings{Topic: &topic}))
	case InputItemLimit:
		limit := 0
		if s := strings.TrimSpace(text); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				m.errorMessage = "limit must be a whole number"
				return
			}
			limit = n
		}
		m.report(m.ctrl.SetBoardField(board.Settings{MaxItemsPerUser: &limit}))
	case InputBackground:
		color := strings.TrimSpace(text)
		m.report(m.ctrl.SetBoardField(board.Settings{BackgroundColor: &color}))
	}
}

// addItem places a new item around the middle of the screen.
func (m *model) addItem(t board.ItemType, content string) {
	c := m.viewport().center()
	style := boardsync.Style{X: c.X, Y: c.Y}
	if t == board.TypeText {
		style.Color = defaultNote
	}
	if _, err := m.ctrl.AddItem(t, content, style); err != nil {
		if errors.Is(err, board.ErrInvalidContent) {
			m.errorMessage = fmt.Sprintf("not a valid %s", strings.ToLower(string(t)))
			return
		}
		m.report(err)
	}
}

func (m *model) pasteClipboard() {
	text, err := readClipboardText()
	if err != nil {
		m.errorMessage = fmt.Sprintf("paste failed: %v", err)
		return
	}
	t, content, ok := pastedItem(text)
	if !ok {
		m.errorMessage = "clipboard is empty"
		return
	}
	m.addItem(t, content)
}

func (m model) handleDrawKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = ModeNormal
		m.pad = drawing.Pad{}
	case "u":
		m.pad.Undo()
	case "U", "ctrl+r":
		m.pad.Redo()
	case "c":
		m.pad.Clear()
	case "enter", "ctrl+s":
		if m.pad.Empty() {
			m.mode = ModeNormal
			return m, nil
		}
		r := m.pad.Bounds()
		c := r.Center()
		d, err := m.pad.Draft(c.X, c.Y, drawingColor)
		if err != nil {
			m.errorMessage = err.Error()
			return m, nil
		}
		_, err = m.ctrl.AddItem(board.TypeDrawing, d.Payload.Content(), boardsync.Style{
			X:         d.X,
			Y:         d.Y,
			Width:     d.Width,
			Height:    d.Height,
			TextColor: d.TextColor,
		})
		m.mode = ModeNormal
		m.pad = drawing.Pad{}
		m.report(err)
	}
	return m, nil
}

func (m model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		m.mode = ModeNormal
		switch m.confirmAction {
		case ConfirmQuit:
			return m, tea.Quit
		case ConfirmDeleteItem:
			m.report(m.ctrl.DeleteItem(m.confirmItemID))
		case ConfirmDeleteSelection:
			m.ctrl.DeleteSelection()
		}
		m.confirmItemID = ""
	case "n", "N", "esc":
		m.mode = ModeNormal
		m.confirmItemID = ""
	}
	return m, nil
}

func (m model) handleHelpKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "?":
		m.help = false
		m.helpScroll = 0
	case "j", "down":
		if m.helpScroll < len(helpLines)-1 {
			m.helpScroll++
		}
	case "k", "up":
		if m.helpScroll > 0 {
			m.helpScroll--
		}
	case "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	if m.help {
		return m.helpView()
	}
	view := m.ctrl.View()
	var pad *drawing.Pad
	if m.mode == ModeDraw {
		pad = &m.pad
	}
	lines := renderBoard(view, m.viewport(), pad)
	return strings.Join(lines, "\n") + "\n" + m.statusLine(view)
}

func (m model) statusLine(view boardsync.View) string {
	var status string
	switch m.mode {
	case ModeInput:
		text := string(m.inputText[:m.inputCursorPos]) + "█" + string(m.inputText[m.inputCursorPos:])
		text = strings.ReplaceAll(text, "\n", "⏎")
		hint := "Enter=save"
		if m.multiline() {
			hint = "Enter=newline, Ctrl+S=save"
		}
		status = fmt.Sprintf("Mode: %s | %s: %s | %s, Esc=cancel", m.modeString(), m.inputLabel(), text, hint)
	case ModeDraw:
		status = fmt.Sprintf("Mode: DRAW | %d strokes | drag=draw, u/U=undo/redo, c=clear, Enter=add, Esc=cancel", len(m.pad.Strokes()))
	case ModeConfirm:
		status = fmt.Sprintf("Mode: CONFIRM | %s (y/n)", m.confirmMessage())
	default:
		status = m.boardStatus(view)
	}

	if m.errorMessage != "" {
		status += " | " + errorStyle.Render("ERROR: "+m.errorMessage)
	} else if m.successMessage != "" {
		status += " | " + m.successMessage
	} else if m.mode == ModeNormal {
		status += " | ? for help | q to quit"
	}
	return statusStyle.Width(m.canvasWidth()).MaxHeight(1).Render(status)
}

func (m model) boardStatus(view boardsync.View) string {
	b := view.Board
	parts := []string{
		fmt.Sprintf("Mode: %s", m.modeString()),
		fmt.Sprintf("%s [%s]", b.Topic, shortID(b.ID)),
		fmt.Sprintf("%d items", len(b.Items)),
	}
	if b.IsHost(m.ctrl.User()) {
		parts = append(parts, "host")
	}
	if b.MaxItemsPerUser > 0 {
		parts = append(parts, fmt.Sprintf("%d/%d yours", b.CountByAuthor(m.ctrl.User()), b.MaxItemsPerUser))
	}
	if b.IsPublic {
		parts = append(parts, "public")
	}
	s := view.Session
	if s.GroupMode {
		parts = append(parts, fmt.Sprintf("GROUP %d selected", len(s.Selected)))
	} else if it, _, ok := b.Find(s.Active); ok && s.Active != "" {
		desc := fmt.Sprintf("%s by %s", strings.ToLower(string(it.Type())), it.Author)
		if it.Rotation != 0 {
			desc += fmt.Sprintf(" %.0f°", it.Rotation)
		}
		if it.Type() == board.TypeText {
			desc += fmt.Sprintf(" %.0fpt", it.FontSizeOrDefault())
		}
		parts = append(parts, desc)
	}
	if s.State != interaction.Idle {
		parts = append(parts, s.State.String())
	}
	switch {
	case view.Missing:
		parts = append(parts, flagStyle.Render("DELETED REMOTELY"))
	case view.Offline:
		parts = append(parts, flagStyle.Render("OFFLINE"))
	case view.FromCache:
		parts = append(parts, flagStyle.Render("CACHED"))
	}
	return strings.Join(parts, " | ")
}

func (m model) modeString() string {
	switch m.mode {
	case ModeNormal:
		return "NORMAL"
	case ModeInput:
		return "INPUT"
	case ModeDraw:
		return "DRAW"
	case ModeConfirm:
		return "CONFIRM"
	default:
		return "UNKNOWN"
	}
}

func (m model) inputLabel() string {
	switch m.inputKind {
	case InputEditItem:
		return "Edit " + strings.ToLower(string(m.inputType))
	case InputTopic:
		return "Topic"
	case InputItemLimit:
		return "Items per user (empty = unlimited)"
	case InputBackground:
		return "Background colour"
	}
	return "New " + strings.ToLower(string(m.inputType))
}

func (m model) confirmMessage() string {
	switch m.confirmAction {
	case ConfirmDeleteItem:
		return "Delete this item?"
	case ConfirmDeleteSelection:
		return fmt.Sprintf("Delete %d selected items?", len(m.ctrl.View().Session.Selected))
	case ConfirmQuit:
		return "Quit corkboard?"
	}
	return ""
}

var helpLines = []string{
	"Corkboard Help",
	"==============",
	"",
	"Mouse:",
	"------",
	"  drag item        Move it (becomes the active item)",
	"  drag ◢           Resize the active item",
	"  drag ↻           Rotate the active item",
	"  click canvas     Clear the active item",
	"  wheel            Scroll (Shift+wheel scrolls sideways)",
	"",
	"Navigation:",
	"-----------",
	"  h/←/j/↓/k/↑/l/→  Pan the board",
	"  Shift+h/j/k/l    Pan faster",
	"  0                Back to the origin",
	"",
	"Adding:",
	"-------",
	"  t                New text note",
	"  e                New emoji",
	"  s                New sticker (URL or name)",
	"  i                New image (data URI)",
	"  p                Paste clipboard as text or image",
	"  D                Open the drawing pad",
	"",
	"Active item:",
	"------------",
	"  Enter            Edit its content",
	"  d/Delete         Delete it",
	"  ]/[              Bring to front / send to back",
	"  +/-              Grow / shrink text",
	"",
	"Group mode:",
	"-----------",
	"  g                Toggle group mode",
	"  click item       Add to / remove from the selection",
	"  drag canvas      Select every item the band touches",
	"  drag group box   Move the selection",
	"  drag ◢           Scale the selection",
	"  d/Delete         Delete the selection",
	"  Esc              Leave group mode",
	"",
	"Drawing pad:",
	"------------",
	"  drag             Draw",
	"  u/U              Undo / redo",
	"  c                Clear",
	"  Enter            Add the drawing to the board",
	"  Esc              Discard",
	"",
	"Board (host only):",
	"------------------",
	"  T                Change topic",
	"  P                Toggle public listing",
	"  M                Items per user",
	"  C                Background colour",
	"",
	"General:",
	"--------",
	"  y                Copy board id",
	"  x                Export as PNG",
	"  X                Export as text",
	"  ?                Toggle this help screen",
	"  q/Ctrl+C         Quit",
	"",
	"Note: items you did not add can only be changed by the board's host.",
}

func (m model) helpView() string {
	visibleHeight := m.canvasHeight()

	startLine := m.helpScroll
	if startLine > len(helpLines)-visibleHeight {
		startLine = max(len(helpLines)-visibleHeight, 0)
	}
	endLine := min(startLine+visibleHeight, len(helpLines))

	result := strings.Join(helpLines[startLine:endLine], "\n")
	statusLine := fmt.Sprintf("Help (%d-%d of %d lines) | j/k to scroll, Esc to close",
		startLine+1, endLine, len(helpLines))
	return result + "\n" + statusStyle.Render(statusLine)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
