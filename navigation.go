package main

import tea "github.com/charmbracelet/bubbletea"

func (m *model) handlePan(key string, speed int) {
	switch key {
	case "h", "left", "H", "shift+left":
		m.panX -= speed
	case "l", "right", "L", "shift+right":
		m.panX += speed
	case "k", "up", "K", "shift+up":
		m.panY -= speed
	case "j", "down", "J", "shift+down":
		m.panY += speed
	}
}

// handleWheel scrolls the board with the mouse wheel; shift scrolls
// sideways.
func (m *model) handleWheel(msg tea.MouseMsg) {
	speed := 3
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		if msg.Shift {
			m.panX -= speed
		} else {
			m.panY -= speed
		}
	case tea.MouseButtonWheelDown:
		if msg.Shift {
			m.panX += speed
		} else {
			m.panY += speed
		}
	case tea.MouseButtonWheelLeft:
		m.panX -= speed
	case tea.MouseButtonWheelRight:
		m.panX += speed
	}
}

func (m *model) getMoveSpeed(key string) int {
	switch key {
	case "H", "L", "K", "J", "shift+left", "shift+right", "shift+up", "shift+down":
		return 8
	default:
		return 2
	}
}
